package perp

import (
	"time"

	"github.com/parallaxfi/dex-engine/internal/fpmath"
	"github.com/parallaxfi/dex-engine/internal/model"
)

// BaseFundingRateBps is the flat component of every funding rate.
const BaseFundingRateBps = 5

// UpdateFunding recomputes the market's funding rate from the long/short
// imbalance and advances the funding index. Returns false without touching
// the market when no positions are open.
//
// rate = 5 + (|long-short| * 10000 / larger_side) / 100, signed positive
// when longs outweigh shorts (longs pay shorts). The index accumulates the
// unsigned magnitude only; see the package comment.
func UpdateFunding(m *model.PerpetualMarket, now time.Time) (bool, error) {
	long, short := m.TotalLong, m.TotalShort
	if long == 0 && short == 0 {
		return false, nil
	}

	var imbalance, larger uint64
	if long > short {
		imbalance, larger = long-short, long
	} else {
		imbalance, larger = short-long, short
	}
	imbalanceRate, err := fpmath.MulDiv(imbalance, BpsDenominator, max(larger, 1))
	if err != nil {
		return false, err
	}

	magnitude := uint64(BaseFundingRateBps) + imbalanceRate/100

	rate := int64(magnitude)
	if long <= short {
		rate = -rate
	}

	index, err := fpmath.Add(m.FundingIndex, magnitude)
	if err != nil {
		return false, err
	}

	m.FundingRate = rate
	m.FundingIndex = index
	m.LastFundingTime = now
	return true, nil
}
