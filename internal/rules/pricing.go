package rules

import (
	"fmt"

	"github.com/creditx-oss/creditx/internal/domain"
	"github.com/creditx-oss/creditx/internal/features"
)

// PricingInput bundles the snapshot pieces the classifier needs.
type PricingInput struct {
	BaseRates   map[domain.Sector]int
	Adjustments []CompiledRule
	Bounds      domain.PricingBounds
	Bands       []domain.Band
}

// Suggest prices one submission: sector base rate, then ordered signed
// bps adjustments (no intermediate clamping), then the configured rate
// bounds, then band classification. Unknown sectors are the only
// per-record failure mode.
func Suggest(in *PricingInput, sector domain.Sector, set features.Set) (*domain.PriceSuggestion, error) {
	base, ok := in.BaseRates[sector]
	if !ok {
		return nil, fmt.Errorf("%w: no base rate for sector %q", domain.ErrUnknownSector, sector)
	}

	rate := base
	adjustments := make([]string, 0, len(in.Adjustments))
	fired := make([]string, 0, len(in.Adjustments))

	for i := range in.Adjustments {
		rule := &in.Adjustments[i]
		if !Fires(rule, set) {
			continue
		}
		rate += rule.Def.Bps
		adjustments = append(adjustments, RenderReason(rule.Def, set))
		fired = append(fired, rule.Def.ID)
	}

	if in.Bounds.MaxRate > in.Bounds.MinRate {
		switch {
		case rate < in.Bounds.MinRate:
			rate = in.Bounds.MinRate
			adjustments = append(adjustments, fmt.Sprintf("Rate clipped to minimum (%d bps)", rate))
		case rate > in.Bounds.MaxRate:
			rate = in.Bounds.MaxRate
			adjustments = append(adjustments, fmt.Sprintf("Rate clipped to maximum (%d bps)", rate))
		}
	}

	band := MatchBand(in.Bands, rate)

	return &domain.PriceSuggestion{
		BandCode:         band.Code,
		BandLabel:        band.Label,
		BandDescription:  band.Description,
		BaseRateBps:      base,
		SuggestedRateBps: rate,
		Adjustments:      adjustments,
		Fired:            fired,
	}, nil
}

// MatchBand finds the band whose [lower, upper) interval contains the
// rate. The table is validated contiguous and ordered at reload time;
// rates outside the table clamp into the nearest boundary band so
// pricing always returns a usable classification.
func MatchBand(bands []domain.Band, rateBps int) domain.Band {
	if rateBps < bands[0].LowerBps {
		return bands[0]
	}
	for _, band := range bands {
		if rateBps >= band.LowerBps && rateBps < band.UpperBps {
			return band
		}
	}
	return bands[len(bands)-1]
}
