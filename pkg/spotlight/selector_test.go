package spotlight

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/elonfeng/vibescore/pkg/domain"
	"github.com/elonfeng/vibescore/pkg/ranking"
)

type stubStore struct {
	rows       []Spotlight
	candidates []Candidate
	lists      map[int64][]domain.ListSummary
	rankings   map[int64]*ranking.CreatorRanking
	users      map[string]int64
	picks      []EditorPick
}

func newStubStore() *stubStore {
	return &stubStore{
		lists:    make(map[int64][]domain.ListSummary),
		rankings: make(map[int64]*ranking.CreatorRanking),
		users:    make(map[string]int64),
	}
}

func (s *stubStore) GetActiveSpotlight(_ context.Context, now time.Time) (*Spotlight, error) {
	for i := range s.rows {
		if s.rows[i].ActiveAt(now) {
			sp := s.rows[i]
			return &sp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubStore) CountRecentSpotlights(_ context.Context, userID int64, since time.Time) (int, error) {
	n := 0
	for _, r := range s.rows {
		if r.UserID == userID && r.EndDate.After(since) {
			n++
		}
	}
	return n, nil
}

func (s *stubStore) CreateSpotlight(_ context.Context, sp *Spotlight) error {
	for _, r := range s.rows {
		if r.ActiveAt(sp.StartDate) {
			return ErrActiveExists
		}
	}
	sp.ID = int64(len(s.rows) + 1)
	s.rows = append(s.rows, *sp)
	return nil
}

func (s *stubStore) ListSpotlightCandidates(context.Context, time.Time) ([]Candidate, error) {
	out := make([]Candidate, len(s.candidates))
	copy(out, s.candidates)
	return out, nil
}

func (s *stubStore) GetProfile(_ context.Context, id int64) (domain.Profile, error) {
	return domain.Profile{UserID: id, Username: "user"}, nil
}

func (s *stubStore) ListTopLists(_ context.Context, id int64, _ int) ([]domain.ListSummary, error) {
	return s.lists[id], nil
}

func (s *stubStore) GetRanking(_ context.Context, id int64) (*ranking.CreatorRanking, error) {
	if r, ok := s.rankings[id]; ok {
		return r, nil
	}
	return nil, domain.ErrNotFound
}

func (s *stubStore) GetUserIDByUsername(_ context.Context, name string) (int64, error) {
	if id, ok := s.users[name]; ok {
		return id, nil
	}
	return 0, domain.ErrNotFound
}

func (s *stubStore) SaveEditorPick(_ context.Context, p *EditorPick) (bool, error) {
	for _, existing := range s.picks {
		if existing.GUID == p.GUID {
			return false, nil
		}
	}
	p.ID = int64(len(s.picks) + 1)
	s.picks = append(s.picks, *p)
	return true, nil
}

func (s *stubStore) ListPendingEditorPicks(context.Context) ([]EditorPick, error) {
	var out []EditorPick
	for _, p := range s.picks {
		if p.Status == PickPending {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubStore) SetEditorPickStatus(_ context.Context, id int64, status PickStatus) error {
	for i := range s.picks {
		if s.picks[i].ID == id {
			s.picks[i].Status = status
		}
	}
	return nil
}

var testNow = time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

func newTestSelector(s Store) *Selector {
	sel := NewSelector(s, nil, DefaultPolicy(), zerolog.Nop())
	sel.now = func() time.Time { return testNow }
	return sel
}

func TestRankBlend(t *testing.T) {
	pool := []Candidate{
		{UserID: 1, RankingScore: 100, MomentumScore: 0, AvgEngagement: 10},
		{UserID: 2, RankingScore: 50, MomentumScore: 40, AvgEngagement: 20},
	}
	got := Rank(pool, DefaultPolicy())

	// user 1: 0.6*1 + 0 + 0.1*0.5 = 0.65; user 2: 0.3 + 0.3 + 0.1 = 0.7
	if got[0].UserID != 2 {
		t.Fatalf("winner = %d, want 2", got[0].UserID)
	}
	if math.Abs(got[0].Score-0.7) > 1e-9 || math.Abs(got[1].Score-0.65) > 1e-9 {
		t.Fatalf("scores = %v, %v", got[0].Score, got[1].Score)
	}
}

func TestRankZeroPoolKeepsOrder(t *testing.T) {
	pool := []Candidate{{UserID: 5}, {UserID: 3}}
	got := Rank(pool, DefaultPolicy())
	if got[0].UserID != 5 || got[0].Score != 0 {
		t.Fatalf("got %+v", got)
	}
}

func TestSelectRespectsCooldown(t *testing.T) {
	tests := []struct {
		name     string
		endedAgo time.Duration
		want     int64
	}{
		{"ended 59 days ago", 59 * 24 * time.Hour, 2},
		{"ended exactly 60 days ago", 60 * 24 * time.Hour, 1},
		{"ended 61 days ago", 61 * 24 * time.Hour, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStubStore()
			end := testNow.Add(-tt.endedAgo)
			s.rows = []Spotlight{{UserID: 1, Type: TypeWeekly, StartDate: end.Add(-7 * 24 * time.Hour), EndDate: end}}
			s.candidates = []Candidate{
				{UserID: 1, RankingScore: 500},
				{UserID: 2, RankingScore: 10},
			}

			sp, err := newTestSelector(s).SelectAndCreateWeekly(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sp.UserID != tt.want {
				t.Fatalf("selected %d, want %d", sp.UserID, tt.want)
			}
		})
	}
}

func TestSelectEmptyPool(t *testing.T) {
	s := newStubStore()
	sp, err := newTestSelector(s).SelectAndCreateWeekly(context.Background())
	if err != nil || sp != nil {
		t.Fatalf("got %+v, %v; want nil, nil", sp, err)
	}
	if len(s.rows) != 0 {
		t.Fatal("no row may be created for an empty pool")
	}

	d, err := newTestSelector(s).CurrentWithDetails(context.Background())
	if err != nil || d != nil {
		t.Fatalf("got %+v, %v; want nil, nil", d, err)
	}
}

func TestSelectWithActiveSpotlight(t *testing.T) {
	s := newStubStore()
	s.rows = []Spotlight{{UserID: 9, Type: TypeWeekly, StartDate: testNow.Add(-24 * time.Hour), EndDate: testNow.Add(6 * 24 * time.Hour)}}
	s.candidates = []Candidate{{UserID: 1, RankingScore: 10}}

	if _, err := newTestSelector(s).SelectAndCreateWeekly(context.Background()); !errors.Is(err, ErrActiveExists) {
		t.Fatalf("err = %v, want ErrActiveExists", err)
	}

	d, err := newTestSelector(s).CurrentWithDetails(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Spotlight.UserID != 9 || len(s.rows) != 1 {
		t.Fatalf("expected the existing spotlight, got user %d with %d rows", d.Spotlight.UserID, len(s.rows))
	}
}

func TestCurrentWithDetailsCreates(t *testing.T) {
	s := newStubStore()
	s.candidates = []Candidate{{UserID: 4, RankingScore: 80, MomentumScore: 5}}
	s.lists[4] = []domain.ListSummary{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}
	s.rankings[4] = &ranking.CreatorRanking{UserID: 4, GlobalRank: 3}

	d, err := newTestSelector(s).CurrentWithDetails(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d == nil || d.Spotlight.UserID != 4 {
		t.Fatalf("got %+v, want spotlight for user 4", d)
	}
	if d.Spotlight.Type != TypeWeekly || !d.Spotlight.EndDate.Equal(testNow.Add(7*24*time.Hour)) {
		t.Fatalf("unexpected window: %+v", d.Spotlight)
	}
	if len(d.TopLists) != 3 {
		t.Fatalf("top lists = %d, want 3", len(d.TopLists))
	}
	if d.Ranking == nil || d.Ranking.GlobalRank != 3 {
		t.Fatalf("ranking = %+v", d.Ranking)
	}
}

func TestEditorPickWins(t *testing.T) {
	s := newStubStore()
	s.candidates = []Candidate{{UserID: 1, RankingScore: 1000}}
	s.picks = []EditorPick{
		{ID: 1, GUID: "a", UserID: 7, Status: PickPending, Note: "on cooldown"},
		{ID: 2, GUID: "b", UserID: 8, Status: PickPending, Note: "great taste"},
	}
	s.rows = []Spotlight{{UserID: 7, StartDate: testNow.AddDate(0, 0, -20), EndDate: testNow.AddDate(0, 0, -13)}}

	sp, err := newTestSelector(s).SelectAndCreateWeekly(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sp.UserID != 8 || sp.Type != TypeEditor || sp.Note != "great taste" {
		t.Fatalf("got %+v, want editor spotlight for user 8", sp)
	}
	if s.picks[1].Status != PickUsed || s.picks[0].Status != PickPending {
		t.Fatalf("pick statuses = %s/%s", s.picks[0].Status, s.picks[1].Status)
	}
}

const editorFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Editor picks</title>
  <item>
    <title>Alice curates the best synthwave</title>
    <link>https://example.com/picks/1</link>
    <guid>pick-1</guid>
    <category>@alice</category>
    <pubDate>Mon, 31 Aug 2026 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Someone we do not know</title>
    <guid>pick-2</guid>
    <category>ghost</category>
  </item>
  <item>
    <title>No creator named</title>
    <guid>pick-3</guid>
  </item>
</channel>
</rss>`

func TestImportEditorPicks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(editorFeed))
	}))
	defer srv.Close()

	s := newStubStore()
	s.users["alice"] = 42
	sel := newTestSelector(s)

	report, err := sel.ImportEditorPicks(context.Background(), NewFeed(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Fetched != 2 || report.Imported != 1 || report.UnknownUsers != 1 {
		t.Fatalf("report = %+v", report)
	}
	if s.picks[0].UserID != 42 || s.picks[0].Status != PickPending || s.picks[0].Link != "https://example.com/picks/1" {
		t.Fatalf("stored pick = %+v", s.picks[0])
	}

	report, err = sel.ImportEditorPicks(context.Background(), NewFeed(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Duplicates != 1 || report.Imported != 0 {
		t.Fatalf("second import = %+v", report)
	}
}

func TestFeedBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewFeed(srv.URL).Fetch(context.Background()); err == nil {
		t.Fatal("expected error on 404")
	}
}
