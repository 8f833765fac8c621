package spotlight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/elonfeng/vibescore/pkg/domain"
)

// PickSource yields editor nominations.
type PickSource interface {
	Fetch(ctx context.Context) ([]EditorPick, error)
}

// Feed reads editor picks from an RSS/Atom feed. The nominated creator is
// the entry author, or the first category when the author is missing.
type Feed struct {
	client *http.Client
	parser *gofeed.Parser
	url    string
}

// NewFeed creates a new editor-pick feed reader.
func NewFeed(url string) *Feed {
	return &Feed{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		url:    url,
	}
}

func (f *Feed) Fetch(ctx context.Context) ([]EditorPick, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}
	req.Header.Set("User-Agent", "vibescore/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch editor feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("editor feed status %d", resp.StatusCode)
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse editor feed: %w", err)
	}

	var picks []EditorPick
	for _, entry := range parsed.Items {
		username := ""
		if entry.Author != nil {
			username = entry.Author.Name
		}
		if username == "" && len(entry.Categories) > 0 {
			username = entry.Categories[0]
		}
		username = strings.TrimPrefix(strings.TrimSpace(username), "@")
		if username == "" {
			continue
		}

		published := time.Now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}

		guid := entry.GUID
		if guid == "" {
			guid = entry.Link
		}
		picks = append(picks, EditorPick{
			GUID:        guid,
			Username:    username,
			Note:        truncate(entry.Title, 200),
			Link:        entry.Link,
			Status:      PickPending,
			PublishedAt: published,
		})
	}
	return picks, nil
}

// ImportReport summarises an editor-feed import.
type ImportReport struct {
	Fetched      int `json:"fetched"`
	Imported     int `json:"imported"`
	Duplicates   int `json:"duplicates"`
	UnknownUsers int `json:"unknown_users"`
}

// ImportEditorPicks stores new nominations from src as pending picks.
func (s *Selector) ImportEditorPicks(ctx context.Context, src PickSource) (*ImportReport, error) {
	picks, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{Fetched: len(picks)}
	for i := range picks {
		p := &picks[i]
		id, err := s.store.GetUserIDByUsername(ctx, p.Username)
		if errors.Is(err, domain.ErrNotFound) {
			report.UnknownUsers++
			s.log.Warn().Str("username", p.Username).Str("guid", p.GUID).Msg("editor pick for unknown user")
			continue
		}
		if err != nil {
			return report, fmt.Errorf("resolve %s: %w", p.Username, err)
		}
		p.UserID = id

		inserted, err := s.store.SaveEditorPick(ctx, p)
		if err != nil {
			return report, fmt.Errorf("save editor pick %s: %w", p.GUID, err)
		}
		if inserted {
			report.Imported++
		} else {
			report.Duplicates++
		}
	}
	s.log.Info().Int("fetched", report.Fetched).Int("imported", report.Imported).Msg("editor picks imported")
	return report, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
