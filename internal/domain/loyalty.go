package domain

import (
	"fmt"
	"strings"
	"time"
)

type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

func (t Tier) String() string { return string(t) }

func (t Tier) IsValid() bool {
	switch t {
	case TierBronze, TierSilver, TierGold, TierPlatinum:
		return true
	}
	return false
}

func ParseTierFromString(s string) (Tier, error) {
	tier := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !tier.IsValid() {
		return "", fmt.Errorf("%w: invalid tier %q", ErrValidation, s)
	}
	return tier, nil
}

const (
	AccessCodeLength = 6
	AccessCodeTTL    = 15 * time.Minute
)

// CustomerLoyalty holds the points balance of one customer phone.
type CustomerLoyalty struct {
	ID                string
	CustomerPhone     string
	CustomerName      string
	Points            int
	Tier              Tier
	TotalPrizesWon    int
	AuthCode          *string
	AuthCodeExpiresAt *time.Time
	LastLoginAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (l CustomerLoyalty) AccessCodeValid(code string, now time.Time) bool {
	if l.AuthCode == nil || l.AuthCodeExpiresAt == nil {
		return false
	}
	if strings.TrimSpace(code) == "" || *l.AuthCode != strings.TrimSpace(code) {
		return false
	}
	return now.Before(*l.AuthCodeExpiresAt)
}

type RequirementType string

const (
	RequirementPoints  RequirementType = "points"
	RequirementPrizes  RequirementType = "prizes"
	RequirementSpecial RequirementType = "special"
)

func (r RequirementType) String() string { return string(r) }

func (r RequirementType) IsValid() bool {
	switch r {
	case RequirementPoints, RequirementPrizes, RequirementSpecial:
		return true
	}
	return false
}

type Achievement struct {
	ID               string
	Name             string
	Description      string
	Icon             string
	RequirementType  RequirementType
	RequirementValue int
}

var tierAchievementKeywords = map[Tier]string{
	TierBronze:   "Bronze",
	TierSilver:   "Silver",
	TierGold:     "Gold",
	TierPlatinum: "Platinum",
}

// UnlockedBy reports whether the loyalty state satisfies the requirement.
func (a Achievement) UnlockedBy(l CustomerLoyalty) bool {
	switch a.RequirementType {
	case RequirementPoints:
		return l.Points >= a.RequirementValue
	case RequirementPrizes:
		return l.TotalPrizesWon >= a.RequirementValue
	case RequirementSpecial:
		keyword, ok := tierAchievementKeywords[l.Tier]
		return ok && strings.Contains(a.Name, keyword)
	}
	return false
}

type CustomerAchievement struct {
	ID            string
	CustomerPhone string
	AchievementID string
	UnlockedAt    time.Time

	Achievement *Achievement
}
