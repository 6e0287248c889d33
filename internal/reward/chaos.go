package reward

import (
	"strings"

	"github.com/matheus3301/plated/internal/model"
)

// Fixed payouts.
const (
	BaseCompletionCoins = 10
	BaseCompletionXP    = 15
	CreatorBonusCoins   = 5
	ProofBonusCoins     = 5
	VerifiedBonusCoins  = 10
)

// ChaosEligible reports whether any ingredient contains the day's chaos
// ingredient, case-insensitively, while it is active.
func ChaosEligible(ingredients []string, daily *model.DailyIngredient) bool {
	if daily == nil || !daily.Active {
		return false
	}
	needle := strings.ToLower(strings.TrimSpace(daily.Ingredient))
	if needle == "" {
		return false
	}
	for _, ing := range ingredients {
		if strings.Contains(strings.ToLower(ing), needle) {
			return true
		}
	}
	return false
}

// Completion is the payout for finishing a recipe.
type Completion struct {
	Coins      int
	XP         int
	ChaosBonus int
	Multiplier float64
	Chaos      bool
}

// CompletionReward computes the payout for a recipe completion. An eligible
// chaos ingredient multiplies both coins and xp.
func CompletionReward(ingredients []string, daily *model.DailyIngredient) Completion {
	c := Completion{Coins: BaseCompletionCoins, XP: BaseCompletionXP, Multiplier: 1}
	if !ChaosEligible(ingredients, daily) || daily.Multiplier <= 1 {
		return c
	}
	m := daily.Multiplier
	c.Chaos = true
	c.Multiplier = m
	c.ChaosBonus = int(BaseCompletionCoins * (m - 1))
	c.Coins += c.ChaosBonus
	c.XP = int(BaseCompletionXP * m)
	return c
}
