// Package trust maps raw trust signals to named trust levels and the platform
// capabilities each level unlocks. Everything here is pure and safe for
// concurrent use.
package trust

import (
	"strings"

	"github.com/castline/castline/internal/apperr"
	"github.com/castline/castline/internal/db/models"
)

const (
	MinScore = 0
	MaxScore = 100
)

// Level is a named trust bucket. Levels are ordered; Rank gives the order.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
	LevelElite  Level = "ELITE"
)

// levelBand is one row of the score policy table: scores >= floor map to level.
type levelBand struct {
	floor int
	level Level
}

// bands must stay sorted by floor descending and start at MinScore at the bottom.
var bands = []levelBand{
	{floor: 80, level: LevelElite},
	{floor: 50, level: LevelHigh},
	{floor: 25, level: LevelMedium},
	{floor: MinScore, level: LevelLow},
}

// Capabilities are what a trust level unlocks for the account's job listings.
type Capabilities struct {
	VisibilityWeight int  `json:"visibility_weight"`
	PriorityListing  bool `json:"priority_listing"`
	FeaturedBadge    bool `json:"featured_badge"`
	MaxOpenJobs      int  `json:"max_open_jobs"`
}

var capabilities = map[Level]Capabilities{
	LevelLow:    {VisibilityWeight: 1, MaxOpenJobs: 2},
	LevelMedium: {VisibilityWeight: 2, MaxOpenJobs: 5},
	LevelHigh:   {VisibilityWeight: 3, PriorityListing: true, MaxOpenJobs: 10},
	LevelElite:  {VisibilityWeight: 5, PriorityListing: true, FeaturedBadge: true, MaxOpenJobs: 25},
}

var tierLevels = map[models.VerificationTier]Level{
	models.TierBasic:    LevelLow,
	models.TierComplete: LevelMedium,
	models.TierVerified: LevelHigh,
	models.TierFeatured: LevelElite,
}

// ValidateScore rejects scores outside [MinScore, MaxScore]. Scores are never clamped.
func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return apperr.InvalidInput("trust score %d out of range [%d,%d]", score, MinScore, MaxScore)
	}
	return nil
}

// ResolveLevel maps a director trust score to its level.
func ResolveLevel(score int) (Level, error) {
	if err := ValidateScore(score); err != nil {
		return "", err
	}
	for _, b := range bands {
		if score >= b.floor {
			return b.level, nil
		}
	}
	// unreachable: the last band starts at MinScore
	return LevelLow, nil
}

// LevelForTier maps a talent verification tier to a level.
func LevelForTier(tier models.VerificationTier) (Level, error) {
	l, ok := tierLevels[tier]
	if !ok {
		return "", apperr.InvalidInput("unknown verification tier %q", tier)
	}
	return l, nil
}

// DeriveCapabilities returns the capabilities for a level.
func DeriveCapabilities(level Level) (Capabilities, error) {
	c, ok := capabilities[level]
	if !ok {
		return Capabilities{}, apperr.InvalidInput("unknown trust level %q", level)
	}
	return c, nil
}

// VisibilityWeight resolves a score straight to its listing weight.
func VisibilityWeight(score int) (int, error) {
	level, err := ResolveLevel(score)
	if err != nil {
		return 0, err
	}
	c, err := DeriveCapabilities(level)
	if err != nil {
		return 0, err
	}
	return c.VisibilityWeight, nil
}

// Rank orders levels: LOW=0 < MEDIUM < HIGH < ELITE. Unknown levels rank -1.
func (l Level) Rank() int {
	switch l {
	case LevelLow:
		return 0
	case LevelMedium:
		return 1
	case LevelHigh:
		return 2
	case LevelElite:
		return 3
	}
	return -1
}

// ParseLevel validates a level name (case-insensitive).
func ParseLevel(s string) (Level, bool) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if l.Rank() < 0 {
		return "", false
	}
	return l, true
}

// Levels returns every level, lowest first.
func Levels() []Level {
	return []Level{LevelLow, LevelMedium, LevelHigh, LevelElite}
}

// Profile is the resolved trust view of an account.
type Profile struct {
	Level        Level        `json:"trust_level"`
	Capabilities Capabilities `json:"capabilities"`
}

// ProfileFor resolves an account's trust: directors by score, talents by
// verification tier. Admins resolve as LOW; they post no listings.
func ProfileFor(a *models.Account) (Profile, error) {
	var (
		level Level
		err   error
	)
	switch a.Role {
	case models.RoleDirector:
		level, err = ResolveLevel(a.TrustScore)
	case models.RoleTalent:
		level, err = LevelForTier(a.VerificationTier)
	default:
		level = LevelLow
	}
	if err != nil {
		return Profile{}, err
	}
	caps, err := DeriveCapabilities(level)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Level: level, Capabilities: caps}, nil
}
