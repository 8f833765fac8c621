package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Webhook request headers.
const (
	SignatureHeader = "X-Vibescore-Signature-256"
	EventHeader     = "X-Vibescore-Event"
	DeliveryHeader  = "X-Vibescore-Delivery"
)

// Webhook posts events to a generic HTTP endpoint as a typed envelope whose
// data block depends on the event kind.
type Webhook struct {
	client *http.Client
	url    string
	secret string
}

// NewWebhook creates a new generic webhook notifier.
func NewWebhook(url, secret string) *Webhook {
	return &Webhook{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
		secret: secret,
	}
}

func (w *Webhook) Name() string { return "webhook" }

// Envelope is the body of every webhook delivery.
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// AchievementData is the data block of achievement.unlocked.
type AchievementData struct {
	UserID int64  `json:"user_id"`
	Code   string `json:"code"`
	Tier   string `json:"tier"`
	Title  string `json:"title"`
}

// SpotlightData is the data block of spotlight.started.
type SpotlightData struct {
	UserID int64  `json:"user_id"`
	Type   string `json:"spotlight_type"`
}

// RankingData is the data block of ranking.completed.
type RankingData struct {
	Ranked    int `json:"ranked"`
	Persisted int `json:"persisted"`
	Failed    int `json:"failed"`
}

// NewEnvelope builds the webhook body for e.
func NewEnvelope(e *Event) Envelope {
	env := Envelope{ID: uuid.NewString(), Type: e.Kind, OccurredAt: e.At.UTC()}

	switch e.Kind {
	case KindAchievementUnlocked:
		env.Data = AchievementData{
			UserID: e.UserID,
			Code:   e.Fields["code"],
			Tier:   e.Fields["tier"],
			Title:  e.Fields["title"],
		}
	case KindSpotlightStarted:
		env.Data = SpotlightData{UserID: e.UserID, Type: e.Fields["type"]}
	case KindRankingCompleted:
		env.Data = RankingData{
			Ranked:    atoi(e.Fields["ranked"]),
			Persisted: atoi(e.Fields["persisted"]),
			Failed:    atoi(e.Fields["failed"]),
		}
	default:
		env.Data = e
	}
	return env
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func (w *Webhook) Send(ctx context.Context, e *Event) error {
	env := NewEnvelope(e)
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s webhook: %w", e.Kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "vibescore/1.0")
	req.Header.Set(EventHeader, env.Type)
	req.Header.Set(DeliveryHeader, env.ID)
	if w.secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(w.secret, body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s webhook %s: %w", env.Type, env.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s: status %d", env.ID, resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
