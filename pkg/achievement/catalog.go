package achievement

// Category groups achievements on the profile page.
type Category string

const (
	CategoryCreation    Category = "creation"
	CategoryImpact      Category = "impact"
	CategoryCommunity   Category = "community"
	CategoryConsistency Category = "consistency"
)

// Tier is the rarity of an achievement.
type Tier string

const (
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
	TierElite  Tier = "elite"
)

// Code is the natural key of an achievement.
type Code string

const (
	FirstVibe         Code = "FIRST_VIBE"
	ListBuilder       Code = "LIST_BUILDER"
	CuratorPro        Code = "CURATOR_PRO"
	FirstSave         Code = "FIRST_SAVE"
	CrowdFavorite     Code = "CROWD_FAVORITE"
	HundredSaves      Code = "HUNDRED_SAVES"
	Trendsetter       Code = "TRENDSETTER"
	FirstComment      Code = "FIRST_COMMENT"
	Conversationalist Code = "CONVERSATIONALIST"
	HelpfulHand       Code = "HELPFUL_HAND"
	RisingVoice       Code = "RISING_VOICE"
	SevenDayViber     Code = "SEVEN_DAY_VIBER"
	MonthlyCreator    Code = "MONTHLY_CREATOR"
	ComebackKid       Code = "COMEBACK_KID"
)

// Definition is one row of the achievement catalog. ID is assigned by
// storage and is zero until the catalog is seeded.
type Definition struct {
	ID          int64    `db:"id" json:"id"`
	Code        Code     `db:"code" json:"code"`
	Title       string   `db:"title" json:"title"`
	Description string   `db:"description" json:"description"`
	Category    Category `db:"category" json:"category"`
	Tier        Tier     `db:"tier" json:"tier"`
	Icon        string   `db:"icon" json:"icon"`
	IsSecret    bool     `db:"is_secret" json:"is_secret"`
}

// Catalog returns the static achievement catalog in display order.
func Catalog() []Definition {
	return []Definition{
		{Code: FirstVibe, Title: "First Vibe", Description: "Publish your first list.", Category: CategoryCreation, Tier: TierBronze, Icon: "sparkles"},
		{Code: ListBuilder, Title: "List Builder", Description: "Publish 5 lists.", Category: CategoryCreation, Tier: TierSilver, Icon: "layers"},
		{Code: CuratorPro, Title: "Curator Pro", Description: "Publish 20 lists.", Category: CategoryCreation, Tier: TierGold, Icon: "crown"},

		{Code: FirstSave, Title: "First Save", Description: "Someone saved one of your lists.", Category: CategoryImpact, Tier: TierBronze, Icon: "bookmark"},
		{Code: CrowdFavorite, Title: "Crowd Favorite", Description: "A single list reached 25 saves.", Category: CategoryImpact, Tier: TierSilver, Icon: "heart"},
		{Code: HundredSaves, Title: "Hundred Club", Description: "Your lists were saved 100 times.", Category: CategoryImpact, Tier: TierGold, Icon: "trophy"},
		{Code: Trendsetter, Title: "Trendsetter", Description: "One of your lists went viral.", Category: CategoryImpact, Tier: TierElite, Icon: "flame"},

		{Code: FirstComment, Title: "First Word", Description: "Leave your first comment.", Category: CategoryCommunity, Tier: TierBronze, Icon: "message"},
		{Code: Conversationalist, Title: "Conversationalist", Description: "Leave 25 comments.", Category: CategoryCommunity, Tier: TierSilver, Icon: "messages"},
		{Code: HelpfulHand, Title: "Helpful Hand", Description: "Your comments were voted helpful 10 times.", Category: CategoryCommunity, Tier: TierGold, Icon: "thumbs-up"},
		{Code: RisingVoice, Title: "Rising Voice", Description: "Reach 25 followers.", Category: CategoryCommunity, Tier: TierGold, Icon: "megaphone"},

		{Code: SevenDayViber, Title: "Seven Day Viber", Description: "Be active 7 days in a row.", Category: CategoryConsistency, Tier: TierSilver, Icon: "calendar"},
		{Code: MonthlyCreator, Title: "Monthly Creator", Description: "Be active on 10 days within 30 days.", Category: CategoryConsistency, Tier: TierGold, Icon: "calendar-check"},
		{Code: ComebackKid, Title: "Comeback Kid", Description: "Return after a month away.", Category: CategoryConsistency, Tier: TierSilver, Icon: "rewind", IsSecret: true},
	}
}
