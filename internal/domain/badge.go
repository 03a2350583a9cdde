package domain

import "time"

// Badge is an achievement tag held by a civic card.
type Badge string

const (
	BadgeBronzeLevel       Badge = "bronze_level"
	BadgeSilverLevel       Badge = "silver_level"
	BadgeGoldLevel         Badge = "gold_level"
	BadgePlatinumLevel     Badge = "platinum_level"
	BadgeDiamondLevel      Badge = "diamond_level"
	BadgeFirstReport       Badge = "first_report"
	BadgeProblemSolver     Badge = "problem_solver"
	BadgeCommunityHero     Badge = "community_hero"
	BadgeTopReporter       Badge = "top_reporter"
	BadgeEarlyAdopter      Badge = "early_adopter"
	BadgeVeteranMember     Badge = "veteran_member"
	BadgeMilestoneAchiever Badge = "milestone_achiever"
)

// BadgeInfo is the display metadata for a badge.
type BadgeInfo struct {
	Badge       Badge  `json:"badge"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var badgeCatalog = map[Badge]BadgeInfo{
	BadgeBronzeLevel:       {Name: "Bronze Level", Description: "Earned 50+ civic coins"},
	BadgeSilverLevel:       {Name: "Silver Level", Description: "Earned 100+ civic coins"},
	BadgeGoldLevel:         {Name: "Gold Level", Description: "Earned 200+ civic coins"},
	BadgePlatinumLevel:     {Name: "Platinum Level", Description: "Earned 500+ civic coins"},
	BadgeDiamondLevel:      {Name: "Diamond Level", Description: "Earned 1000+ civic coins"},
	BadgeFirstReport:       {Name: "First Report", Description: "Made your first report"},
	BadgeProblemSolver:     {Name: "Problem Solver", Description: "Reported 5+ problems"},
	BadgeCommunityHero:     {Name: "Community Hero", Description: "Reported 10+ problems"},
	BadgeTopReporter:       {Name: "Top Reporter", Description: "Reported 20+ problems"},
	BadgeEarlyAdopter:      {Name: "Early Adopter", Description: "Member for 30+ days"},
	BadgeVeteranMember:     {Name: "Veteran Member", Description: "Member for 90+ days"},
	BadgeMilestoneAchiever: {Name: "Milestone Achiever", Description: "Earned 500+ total coins"},
}

// Info returns display metadata, with a placeholder for unknown badges.
func (b Badge) Info() BadgeInfo {
	info, ok := badgeCatalog[b]
	if !ok {
		return BadgeInfo{Badge: b, Name: "Unknown Badge", Description: "Mystery achievement"}
	}
	info.Badge = b
	return info
}

type badgeRule struct {
	badge Badge
	met   func(card *CivicCard, problemsReported int, memberDays int) bool
}

var badgeRules = []badgeRule{
	{BadgeBronzeLevel, func(c *CivicCard, _, _ int) bool { return c.Balance >= 50 }},
	{BadgeSilverLevel, func(c *CivicCard, _, _ int) bool { return c.Balance >= 100 }},
	{BadgeGoldLevel, func(c *CivicCard, _, _ int) bool { return c.Balance >= 200 }},
	{BadgePlatinumLevel, func(c *CivicCard, _, _ int) bool { return c.Balance >= 500 }},
	{BadgeDiamondLevel, func(c *CivicCard, _, _ int) bool { return c.Balance >= 1000 }},
	{BadgeFirstReport, func(_ *CivicCard, n, _ int) bool { return n >= 1 }},
	{BadgeProblemSolver, func(_ *CivicCard, n, _ int) bool { return n >= 5 }},
	{BadgeCommunityHero, func(_ *CivicCard, n, _ int) bool { return n >= 10 }},
	{BadgeTopReporter, func(_ *CivicCard, n, _ int) bool { return n >= 20 }},
	{BadgeEarlyAdopter, func(_ *CivicCard, _, days int) bool { return days >= 30 }},
	{BadgeVeteranMember, func(_ *CivicCard, _, days int) bool { return days >= 90 }},
	{BadgeMilestoneAchiever, func(c *CivicCard, _, _ int) bool { return c.TotalEarned >= 500 }},
}

// NewBadges returns the badges the card qualifies for but does not hold yet.
// It never proposes removing a badge, so repeated evaluation is idempotent once results are stored.
func NewBadges(card *CivicCard, problemsReported int, now time.Time) []Badge {
	if card == nil {
		return nil
	}
	memberDays := int(now.Sub(card.MemberSince).Hours() / 24)
	var earned []Badge
	for _, rule := range badgeRules {
		if card.HasBadge(rule.badge) {
			continue
		}
		if rule.met(card, problemsReported, memberDays) {
			earned = append(earned, rule.badge)
		}
	}
	return earned
}
