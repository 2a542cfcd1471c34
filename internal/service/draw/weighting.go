package draw

import (
	"math"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
)

// WeightConfig is the part of a giveaway that shapes selection weights.
type WeightConfig struct {
	ReferralEnabled bool
	Multiplier      float64
	MaxMultiplier   float64
}

// ConfigOf extracts the weighting parameters of g.
func ConfigOf(g *dg.Giveaway) WeightConfig {
	return WeightConfig{
		ReferralEnabled: g.ReferralEnabled,
		Multiplier:      g.ReferralMultiplier,
		MaxMultiplier:   g.MaxReferralMultiplier,
	}
}

// ComputeWeight returns min(1 + r*(m-1), max) for a participant with r
// referrals, or 1 when referrals are off or r is zero. Never below 1.
func ComputeWeight(p dg.Participant, cfg WeightConfig) float64 {
	if !cfg.ReferralEnabled || p.ReferralCount <= 0 {
		return 1.0
	}
	w := 1.0 + float64(p.ReferralCount)*(cfg.Multiplier-1.0)
	if w > cfg.MaxMultiplier {
		w = cfg.MaxMultiplier
	}
	if w < 1.0 || math.IsNaN(w) {
		return 1.0
	}
	return w
}
