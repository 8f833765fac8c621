package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/elonfeng/vibescore/pkg/achievement"
	"github.com/elonfeng/vibescore/pkg/ranking"
	"github.com/elonfeng/vibescore/pkg/spotlight"
	"github.com/elonfeng/vibescore/pkg/trending"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	s.now = func() time.Time { return testNow }
	t.Cleanup(func() { s.Close() })
	return s
}

func mustID(t *testing.T) func(int64, error) int64 {
	return func(id int64, err error) int64 {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

type fixture struct {
	alice, bob, carol int64
	music, books      int64
	aliceList         int64
	hiddenList        int64
	bobList           int64
}

func seedFixture(t *testing.T, s *SQLiteStore) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture
	f.alice = mustID(t)(s.CreateUser(ctx, "alice", testNow.AddDate(0, -2, 0)))
	f.bob = mustID(t)(s.CreateUser(ctx, "bob", testNow.AddDate(0, -2, 0)))
	f.carol = mustID(t)(s.CreateUser(ctx, "carol", testNow.AddDate(0, -2, 0)))
	f.music = mustID(t)(s.CreateCategory(ctx, "music", "Music"))
	f.books = mustID(t)(s.CreateCategory(ctx, "books", "Books"))

	f.aliceList = mustID(t)(s.CreateList(ctx, ListOptions{OwnerID: f.alice, CategoryID: f.music, Title: "synthwave", At: testNow.AddDate(0, 0, -20)}))
	f.hiddenList = mustID(t)(s.CreateList(ctx, ListOptions{OwnerID: f.alice, CategoryID: f.books, Title: "drafts", Private: true, At: testNow.AddDate(0, 0, -20)}))
	f.bobList = mustID(t)(s.CreateList(ctx, ListOptions{OwnerID: f.bob, CategoryID: f.books, Title: "noir", At: testNow.AddDate(0, 0, -20)}))

	must(t, s.AddSave(ctx, f.aliceList, f.bob, testNow.AddDate(0, 0, -2)))
	must(t, s.AddSave(ctx, f.aliceList, f.carol, testNow.AddDate(0, 0, -10)))
	must(t, s.AddSave(ctx, f.aliceList, f.alice, testNow.AddDate(0, 0, -3)))
	must(t, s.AddLike(ctx, f.aliceList, f.bob, testNow.AddDate(0, 0, -1)))
	must(t, s.AddLike(ctx, f.aliceList, f.bob, testNow.AddDate(0, 0, -1)))
	must(t, s.Follow(ctx, f.bob, f.alice, testNow.AddDate(0, 0, -5)))
	must(t, s.Follow(ctx, f.carol, f.alice, testNow.AddDate(0, -2, 0)))

	cid := mustID(t)(s.AddComment(ctx, f.bobList, f.alice, "great", testNow.AddDate(0, 0, -4)))
	must(t, s.VoteHelpful(ctx, cid, f.bob, testNow.AddDate(0, 0, -4)))
	must(t, s.AddSuggestion(ctx, f.bobList, f.alice, "approved", testNow.AddDate(0, 0, -6)))
	return f
}

func TestCreatorAggregates(t *testing.T) {
	s := newTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	agg, err := s.GetCreatorAggregates(ctx, f.alice, testNow.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("aggregates: %v", err)
	}
	if agg.ListCount != 1 {
		t.Errorf("list count = %d, want 1 (private list excluded)", agg.ListCount)
	}
	if agg.AvgLikes != 1 {
		t.Errorf("avg likes = %v, want 1 (duplicate like ignored)", agg.AvgLikes)
	}
	if agg.TotalSaves != 3 || agg.UniqueExternalSaves != 2 {
		t.Errorf("saves total=%d external=%d, want 3/2", agg.TotalSaves, agg.UniqueExternalSaves)
	}
	if agg.Followers != 2 || agg.RecentFollowers != 1 {
		t.Errorf("followers=%d recent=%d, want 2/1", agg.Followers, agg.RecentFollowers)
	}
	if agg.HelpfulVotes != 1 || agg.ApprovedSuggestions != 1 {
		t.Errorf("helpful=%d suggestions=%d, want 1/1", agg.HelpfulVotes, agg.ApprovedSuggestions)
	}
	if agg.LastActivityAt == nil || !agg.LastActivityAt.Equal(testNow.AddDate(0, 0, -2)) {
		t.Errorf("last activity = %v, want latest save", agg.LastActivityAt)
	}

	if _, err := s.GetCreatorAggregates(ctx, 999, testNow); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing user err = %v, want ErrNotFound", err)
	}
}

func TestRankingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	if _, err := s.GetPreviousGlobalRank(ctx, f.alice); !errors.Is(err, ErrNotFound) {
		t.Fatalf("previous rank err = %v, want ErrNotFound", err)
	}

	r := ranking.CreatorRanking{
		UserID:        f.alice,
		RankingScore:  42.5,
		GlobalRank:    1,
		MonthlyRank:   1,
		MonthlyPeriod: "2026-03",
		ComputedAt:    testNow,
	}
	r.CategoryRanks.Set("music", 1)
	must(t, s.PersistRanking(ctx, &r))

	r.GlobalRank = 2
	r.PreviousGlobalRank = 1
	must(t, s.PersistRanking(ctx, &r))

	got, err := s.GetRanking(ctx, f.alice)
	if err != nil {
		t.Fatalf("get ranking: %v", err)
	}
	if got.GlobalRank != 2 || got.PreviousGlobalRank != 1 || got.RankingScore != 42.5 {
		t.Fatalf("ranking = %+v", got)
	}
	if rank, ok := got.CategoryRanks.Get("music"); !ok || rank != 1 {
		t.Fatalf("music rank = %d (%v)", rank, ok)
	}
	if !got.ComputedAt.Equal(testNow) {
		t.Fatalf("computed at = %v", got.ComputedAt)
	}

	all, err := s.ListRankings(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("list rankings = %d rows, err %v", len(all), err)
	}
}

func TestCategoryMembership(t *testing.T) {
	s := newTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	ids, err := s.ListCreatorsWithPublicListsInCategory(ctx, f.books)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != f.bob {
		t.Fatalf("books creators = %v, want only bob", ids)
	}

	creators, err := s.ListCreatorIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(creators) != 2 {
		t.Fatalf("creators = %v, want alice and bob", creators)
	}
}

func TestRankingEngineAgainstStore(t *testing.T) {
	s := newTestStore(t)
	f := seedFixture(t, s)

	report, err := ranking.NewEngine(s, ranking.DefaultConfig(), zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Persisted != 2 {
		t.Fatalf("persisted = %d, want 2", report.Persisted)
	}
	alice, err := s.GetRanking(context.Background(), f.alice)
	if err != nil {
		t.Fatal(err)
	}
	if alice.GlobalRank != 1 {
		t.Fatalf("alice rank = %d, want 1", alice.GlobalRank)
	}
}

func TestLeaderboardAfterCreatorStopsQualifying(t *testing.T) {
	s := newTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()
	engine := ranking.NewEngine(s, ranking.DefaultConfig(), zerolog.Nop())

	if _, err := engine.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	must(t, s.DeleteList(ctx, f.aliceList, testNow))
	if _, err := engine.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}

	stale, err := s.GetRanking(ctx, f.alice)
	if err != nil {
		t.Fatalf("alice row: %v", err)
	}
	if stale.GlobalRank != 1 {
		t.Fatalf("alice row should keep rank 1, got %d", stale.GlobalRank)
	}

	entries, err := engine.Leaderboard(ctx, ranking.ScopeGlobal, "", 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].Ranking.UserID != f.bob || entries[0].Rank != 1 {
		t.Fatalf("entries = %+v, want only bob at rank 1", entries)
	}
}

func TestAchievementStore(t *testing.T) {
	s := newTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	def := achievement.Catalog()[0]
	must(t, s.UpsertAchievement(ctx, &def))
	firstID := def.ID
	def.Title = "renamed"
	must(t, s.UpsertAchievement(ctx, &def))
	if def.ID != firstID {
		t.Fatalf("upsert changed id %d -> %d", firstID, def.ID)
	}

	ok, err := s.InsertUnlock(ctx, f.alice, def.ID, testNow)
	if err != nil || !ok {
		t.Fatalf("first unlock = %v, %v", ok, err)
	}
	ok, err = s.InsertUnlock(ctx, f.alice, def.ID, testNow)
	if err != nil || ok {
		t.Fatalf("second unlock = %v, %v; want false", ok, err)
	}

	ids, err := s.GetUnlockedAchievementIDs(ctx, f.alice)
	if err != nil || len(ids) != 1 {
		t.Fatalf("unlocked = %v, err %v", ids, err)
	}

	agg, err := s.GetUserAggregates(ctx, f.alice)
	if err != nil {
		t.Fatal(err)
	}
	if agg.Lists != 1 || agg.SavesReceived != 2 || agg.MaxListSaves != 2 || agg.Followers != 2 || agg.Comments != 1 {
		t.Fatalf("achievement aggregates = %+v", agg)
	}

	times, err := s.ListActivityTimes(ctx, f.alice)
	if err != nil {
		t.Fatal(err)
	}
	// two lists, one self-save, one comment
	if len(times) != 4 {
		t.Fatalf("activity times = %d, want 4", len(times))
	}
}

func TestSpotlightOverlapGuard(t *testing.T) {
	s := newTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	first := spotlight.Spotlight{UserID: f.alice, Type: spotlight.TypeWeekly, StartDate: testNow, EndDate: testNow.AddDate(0, 0, 7)}
	must(t, s.CreateSpotlight(ctx, &first))
	if first.ID == 0 {
		t.Fatal("spotlight id not set")
	}

	overlap := spotlight.Spotlight{UserID: f.bob, Type: spotlight.TypeWeekly, StartDate: testNow.AddDate(0, 0, 3), EndDate: testNow.AddDate(0, 0, 10)}
	if err := s.CreateSpotlight(ctx, &overlap); !errors.Is(err, spotlight.ErrActiveExists) {
		t.Fatalf("overlap err = %v, want ErrActiveExists", err)
	}

	active, err := s.GetActiveSpotlight(ctx, testNow.Add(time.Hour))
	if err != nil || active.UserID != f.alice {
		t.Fatalf("active = %+v, err %v", active, err)
	}
	if _, err := s.GetActiveSpotlight(ctx, testNow.AddDate(0, 0, 8)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after window err = %v, want ErrNotFound", err)
	}

	n, err := s.CountRecentSpotlights(ctx, f.alice, testNow.AddDate(0, 0, -60))
	if err != nil || n != 1 {
		t.Fatalf("recent = %d, err %v", n, err)
	}
}

func TestSpotlightCandidatesAndDetails(t *testing.T) {
	s := newTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()
	must(t, s.TouchList(ctx, f.aliceList, testNow.AddDate(0, 0, -1)))

	cands, err := s.ListSpotlightCandidates(ctx, testNow.AddDate(0, 0, -7))
	if err != nil {
		t.Fatal(err)
	}
	// alice touched a list, bob has been idle since creation
	if len(cands) != 1 || cands[0].UserID != f.alice {
		t.Fatalf("candidates = %+v, want alice only", cands)
	}
	if cands[0].AvgEngagement != 4 {
		t.Fatalf("avg engagement = %v, want 4 (1 like + 3 saves)", cands[0].AvgEngagement)
	}

	p, err := s.GetProfile(ctx, f.alice)
	if err != nil || p.Username != "alice" || p.Followers != 2 || p.ListCount != 1 {
		t.Fatalf("profile = %+v, err %v", p, err)
	}
	top, err := s.ListTopLists(ctx, f.alice, 3)
	if err != nil || len(top) != 1 || top[0].SaveCount != 3 {
		t.Fatalf("top lists = %+v, err %v", top, err)
	}
}

func TestEditorPicks(t *testing.T) {
	s := newTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	p := spotlight.EditorPick{GUID: "g1", Username: "bob", UserID: f.bob, Status: spotlight.PickPending, PublishedAt: testNow}
	ok, err := s.SaveEditorPick(ctx, &p)
	if err != nil || !ok {
		t.Fatalf("save = %v, %v", ok, err)
	}
	dup := p
	if ok, _ := s.SaveEditorPick(ctx, &dup); ok {
		t.Fatal("duplicate guid must not be saved")
	}

	pending, err := s.ListPendingEditorPicks(ctx)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %v, err %v", pending, err)
	}
	must(t, s.SetEditorPickStatus(ctx, pending[0].ID, spotlight.PickUsed))
	if pending, _ := s.ListPendingEditorPicks(ctx); len(pending) != 0 {
		t.Fatalf("pick still pending after use")
	}

	id, err := s.GetUserIDByUsername(ctx, "bob")
	if err != nil || id != f.bob {
		t.Fatalf("lookup = %d, %v", id, err)
	}
	if _, err := s.GetUserIDByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown username err = %v", err)
	}
}

func TestFeaturedHistoryAndImpact(t *testing.T) {
	s := newTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	end := testNow.AddDate(0, 0, -1)
	_, err := s.ScheduleFeatured(ctx, f.aliceList, testNow.AddDate(0, 0, -12), &end)
	must(t, err)
	old := testNow.AddDate(0, 0, -50)
	_, err = s.ScheduleFeatured(ctx, f.bobList, testNow.AddDate(0, 0, -57), &old)
	must(t, err)
	_, err = s.ScheduleFeatured(ctx, f.bobList, testNow.AddDate(0, 0, -90), nil)
	must(t, err)

	hist, err := s.GetFeaturedHistory(ctx, testNow.AddDate(0, 0, -28))
	if err != nil {
		t.Fatal(err)
	}
	// the recent slot plus the open-ended one
	if len(hist) != 2 {
		t.Fatalf("history = %+v, want 2 slots", hist)
	}
	if hist[0].EndAt != nil || hist[0].CategoryID != f.books {
		t.Fatalf("oldest slot = %+v, want open-ended books slot", hist[0])
	}

	impact, err := s.GetCategoryImpactScores(ctx, 30)
	if err != nil {
		t.Fatal(err)
	}
	// saves at -2d and -10d, self-save at -3d, like at -1d
	if impact[f.music] != 4 {
		t.Fatalf("music impact = %v, want 4", impact[f.music])
	}
	if _, ok := impact[f.books]; ok {
		t.Fatal("books slots started outside the window")
	}

	cands, err := s.ListEligibleFeaturedCandidates(ctx)
	if err != nil || len(cands) != 2 || cands[0].CategorySlug != "music" {
		t.Fatalf("candidates = %+v, err %v", cands, err)
	}
}

func TestListEngagement(t *testing.T) {
	s := newTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	events, err := s.ListEngagement(ctx, []int64{f.aliceList, f.bobList}, testNow.AddDate(0, 0, -7))
	if err != nil {
		t.Fatal(err)
	}
	var saves, likes int
	for _, ev := range events {
		switch ev.Kind {
		case trending.KindSave:
			saves++
		case trending.KindLike:
			likes++
		}
	}
	if saves != 2 || likes != 1 {
		t.Fatalf("saves=%d likes=%d, want 2/1", saves, likes)
	}

	eng := trending.NewEngine(s, trending.DefaultWeights())
	m, err := eng.Metrics7d(ctx, []int64{f.bobList})
	if err != nil || m[f.bobList].S7 != 0 {
		t.Fatalf("bob metrics = %+v, err %v", m, err)
	}
}

func TestSeedDemo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	must(t, s.SeedDemo(ctx, 12, testNow, 7))

	creators, err := s.ListCreatorIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(creators) == 0 {
		t.Fatal("seed produced no creators")
	}
	if err := s.SeedDemo(ctx, 1, testNow, 7); err == nil {
		t.Fatal("expected error for tiny seed")
	}
}

func TestListActiveUserIDs(t *testing.T) {
	s := newTestStore(t)
	f := seedFixture(t, s)

	ids, err := s.ListActiveUserIDs(context.Background(), testNow.AddDate(0, 0, -3))
	if err != nil {
		t.Fatal(err)
	}
	// bob saved and liked at -2d/-1d, alice owns those lists and self-saved at -3d
	if len(ids) != 2 || ids[0] != f.alice || ids[1] != f.bob {
		t.Fatalf("active = %v, want [alice bob]", ids)
	}
}
