package match

import (
	"sort"
	"strings"
	"time"
)

// Usage, recency, success-rate and popularity tiers applied on top of the
// strategy base confidence.
const (
	sizeMatchBonus = 15

	usageHighTier  = 100
	usageHighBonus = 10
	usageMidTier   = 20
	usageMidBonus  = 5

	recencyNearDays  = 7
	recencyNearBonus = 5
	recencyFarDays   = 30
	recencyFarBonus  = 2

	successHighRate  = 0.9
	successHighBonus = 8
	successMidRate   = 0.7
	successMidBonus  = 4

	popularityHighTier  = 5
	popularityHighBonus = 5
	popularityMidTier   = 2
	popularityMidBonus  = 2
)

// Scorer adjusts candidate confidences with catalog history signals and
// orders the final list.
type Scorer struct {
	now func() time.Time
}

// NewScorer creates a scorer using wall-clock time for recency tiers.
func NewScorer() *Scorer {
	return &Scorer{now: time.Now}
}

// Rank applies additive bonuses, clamps every score to [0,100] and sorts by
// (confidence desc, usage count desc). Sorting is stable so ties keep their
// insertion order from the merge step.
func (s *Scorer) Rank(q Query, candidates []Candidate) []Candidate {
	for i := range candidates {
		candidates[i].Confidence = clamp(candidates[i].BaseConfidence + s.bonus(q, &candidates[i]))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Product.UsageCount > candidates[j].Product.UsageCount
	})
	return candidates
}

func (s *Scorer) bonus(q Query, c *Candidate) int {
	p := c.Product
	bonus := 0

	if q.Size != "" {
		size := strings.ToLower(q.Size)
		if strings.Contains(strings.ToLower(p.UnitSize), size) || strings.Contains(p.NormalizedName, size) {
			bonus += sizeMatchBonus
		}
	}

	switch {
	case p.UsageCount >= usageHighTier:
		bonus += usageHighBonus
	case p.UsageCount >= usageMidTier:
		bonus += usageMidBonus
	}

	if p.LastUsed != nil {
		age := s.now().Sub(*p.LastUsed)
		switch {
		case age <= recencyNearDays*24*time.Hour:
			bonus += recencyNearBonus
		case age <= recencyFarDays*24*time.Hour:
			bonus += recencyFarBonus
		}
	}

	switch {
	case p.SuccessRate >= successHighRate:
		bonus += successHighBonus
	case p.SuccessRate >= successMidRate:
		bonus += successMidBonus
	}

	switch {
	case p.LocationsUsed >= popularityHighTier:
		bonus += popularityHighBonus
	case p.LocationsUsed >= popularityMidTier:
		bonus += popularityMidBonus
	}

	return bonus
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
