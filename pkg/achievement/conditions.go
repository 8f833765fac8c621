package achievement

import "time"

// Aggregates are the per-user counters the conditions read.
type Aggregates struct {
	Lists         int // non-deleted lists authored
	SavesReceived int // saves on own lists by other users
	MaxListSaves  int
	ViralLists    int
	Comments      int
	HelpfulVotes  int
	Followers     int
}

// Snapshot is everything a condition may look at.
type Snapshot struct {
	Aggregates
	Activity ActivitySet
	Now      time.Time
}

// Condition reports whether an achievement is earned.
type Condition func(Snapshot) bool

// Thresholds parameterise the built-in conditions.
type Thresholds struct {
	ListBuilder       int
	CuratorPro        int
	CrowdFavorite     int
	HundredSaves      int
	Conversationalist int
	HelpfulHand       int
	RisingVoice       int
	StreakDays        int
	MonthlyDays       int
	MonthlyWindow     int
	ComebackGap       int
	ComebackRecent    int
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ListBuilder:       5,
		CuratorPro:        20,
		CrowdFavorite:     25,
		HundredSaves:      100,
		Conversationalist: 25,
		HelpfulHand:       10,
		RisingVoice:       25,
		StreakDays:        7,
		MonthlyDays:       10,
		MonthlyWindow:     30,
		ComebackGap:       30,
		ComebackRecent:    7,
	}
}

// Conditions maps every catalog code to its unlock condition.
func Conditions(t Thresholds) map[Code]Condition {
	atLeast := func(get func(Snapshot) int, n int) Condition {
		return func(s Snapshot) bool { return get(s) >= n }
	}
	lists := func(s Snapshot) int { return s.Lists }
	saves := func(s Snapshot) int { return s.SavesReceived }
	comments := func(s Snapshot) int { return s.Comments }

	return map[Code]Condition{
		FirstVibe:   atLeast(lists, 1),
		ListBuilder: atLeast(lists, t.ListBuilder),
		CuratorPro:  atLeast(lists, t.CuratorPro),

		FirstSave:     atLeast(saves, 1),
		CrowdFavorite: atLeast(func(s Snapshot) int { return s.MaxListSaves }, t.CrowdFavorite),
		HundredSaves:  atLeast(saves, t.HundredSaves),
		Trendsetter:   atLeast(func(s Snapshot) int { return s.ViralLists }, 1),

		FirstComment:      atLeast(comments, 1),
		Conversationalist: atLeast(comments, t.Conversationalist),
		HelpfulHand:       atLeast(func(s Snapshot) int { return s.HelpfulVotes }, t.HelpfulHand),
		RisingVoice:       atLeast(func(s Snapshot) int { return s.Followers }, t.RisingVoice),

		SevenDayViber: func(s Snapshot) bool {
			return s.Activity.HasStreak(t.StreakDays)
		},
		MonthlyCreator: func(s Snapshot) bool {
			return s.Activity.DaysWithin(s.Now, t.MonthlyWindow) >= t.MonthlyDays
		},
		ComebackKid: func(s Snapshot) bool {
			return s.Activity.Comeback(s.Now, t.ComebackGap, t.ComebackRecent)
		},
	}
}
