// Package advisor suggests catalog plans based on a user's metered usage.
package advisor

import (
	"fmt"
	"sort"

	"github.com/cloudnetiq/planport/app/models"
)

const (
	// upgradeThreshold is the share of the quota above which a bigger plan
	// is suggested.
	upgradeThreshold = 0.8
	// downgradeThreshold is the share of the quota below which a smaller
	// plan is suggested.
	downgradeThreshold = 0.3
)

// Suggestion is the advisor's answer for one user.
type Suggestion struct {
	Action        string       `json:"action"` // "upgrade", "downgrade" or "keep"
	Plan          *models.Plan `json:"plan,omitempty"`
	Reason        string       `json:"reason"`
	AvgUsageGB    float64      `json:"avg_usage_gb"`
	QuotaGB       int          `json:"quota_gb"`
	QuotaUsedPart float64      `json:"quota_used_part"`
}

// Recommend compares the user's average per-cycle usage against the quota of
// their current plan and picks the cheapest plan from the catalog that fits.
// It never suggests leaving the catalog: with no fitting alternative the
// answer is to keep the current plan.
func Recommend(catalog []models.Plan, current *models.Plan, avgUsageGB float64) Suggestion {
	quota := current.MonthlyQuotaGB
	var usedPart float64
	if quota > 0 {
		usedPart = avgUsageGB / float64(quota)
	}

	s := Suggestion{
		Action:        "keep",
		AvgUsageGB:    avgUsageGB,
		QuotaGB:       quota,
		QuotaUsedPart: usedPart,
		Reason:        fmt.Sprintf("Your average usage of %.1f GB fits your current plan.", avgUsageGB),
	}

	candidates := make([]models.Plan, 0, len(catalog))
	for _, p := range catalog {
		if p.IsActive && p.ID != current.ID {
			candidates = append(candidates, p)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].MonthlyPrice < candidates[j].MonthlyPrice
	})

	switch {
	case usedPart >= upgradeThreshold:
		// Cheapest plan whose quota leaves headroom below the threshold.
		for i := range candidates {
			p := &candidates[i]
			if p.MonthlyQuotaGB <= quota {
				continue
			}
			if avgUsageGB < upgradeThreshold*float64(p.MonthlyQuotaGB) {
				s.Action = "upgrade"
				s.Plan = p
				s.Reason = fmt.Sprintf(
					"You use %.1f GB of your %d GB quota on average. %s offers %d GB.",
					avgUsageGB, quota, p.Name, p.MonthlyQuotaGB)
				return s
			}
		}
		s.Reason = fmt.Sprintf(
			"You use %.1f GB of your %d GB quota on average, but no larger plan is available.",
			avgUsageGB, quota)
	case usedPart < downgradeThreshold && avgUsageGB > 0:
		// Cheapest smaller plan that still covers the usage comfortably.
		for i := range candidates {
			p := &candidates[i]
			if p.MonthlyQuotaGB >= quota {
				continue
			}
			if avgUsageGB < upgradeThreshold*float64(p.MonthlyQuotaGB) {
				s.Action = "downgrade"
				s.Plan = p
				s.Reason = fmt.Sprintf(
					"You only use %.1f GB of your %d GB quota on average. %s would cover that for less.",
					avgUsageGB, quota, p.Name)
				return s
			}
		}
	}

	return s
}
