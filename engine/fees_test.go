package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatioFromPercent(t *testing.T) {
	tests := []struct {
		name    string
		percent uint32
		want    Ratio
	}{
		{name: "zero percent", percent: 0, want: 0},
		{name: "one percent", percent: 1, want: 10_000},
		{name: "twenty percent", percent: 20, want: 200_000},
		{name: "one hundred percent", percent: 100, want: RatioOne},
		{name: "above one hundred clamps", percent: 150, want: RatioOne},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RatioFromPercent(tt.percent))
		})
	}
}

func TestRatio_Mul(t *testing.T) {
	tests := []struct {
		name   string
		rate   Ratio
		amount Balance
		want   Balance
	}{
		{name: "zero rate", rate: 0, amount: 1_000_000, want: 0},
		{name: "full rate is identity", rate: RatioOne, amount: 12345, want: 12345},
		{name: "one percent", rate: RatioFromPercent(1), amount: 1000, want: 10},
		{name: "truncates remainder", rate: RatioFromPercent(1), amount: 199, want: 1},
		{name: "half of max without overflow", rate: RatioOne / 2, amount: Balance(math.MaxUint64), want: Balance(math.MaxUint64 / 2)},
		{name: "full rate on max", rate: RatioOne, amount: Balance(math.MaxUint64), want: Balance(math.MaxUint64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rate.Mul(tt.amount))
		})
	}
}

func TestSplitFees(t *testing.T) {
	tests := []struct {
		name        string
		amount      Balance
		royaltyRate Ratio
		networkFee  Ratio
		level       ListingLevel
		want        FeeSplit
	}{
		{
			name:        "global listing pays royalty and network fee",
			amount:      1000,
			royaltyRate: RatioFromPercent(20),
			networkFee:  RatioFromPercent(1),
			level:       GlobalListing(),
			want:        FeeSplit{Net: 790, Royalty: 200, NetworkFee: 10},
		},
		{
			name:        "local listing skips network fee",
			amount:      1000,
			royaltyRate: RatioFromPercent(20),
			networkFee:  RatioFromPercent(1),
			level:       LocalListing(3),
			want:        FeeSplit{Net: 800, Royalty: 200, NetworkFee: 0},
		},
		{
			name:        "no royalty routes everything but the network fee to net",
			amount:      1000,
			royaltyRate: 0,
			networkFee:  RatioFromPercent(1),
			level:       GlobalListing(),
			want:        FeeSplit{Net: 990, Royalty: 0, NetworkFee: 10},
		},
		{
			name:        "full royalty leaves nothing for net or network fee",
			amount:      1000,
			royaltyRate: RatioOne,
			networkFee:  RatioFromPercent(1),
			level:       GlobalListing(),
			want:        FeeSplit{Net: 0, Royalty: 1000, NetworkFee: 0},
		},
		{
			name:        "zero amount",
			amount:      0,
			royaltyRate: RatioFromPercent(20),
			networkFee:  RatioFromPercent(1),
			level:       GlobalListing(),
			want:        FeeSplit{},
		},
		{
			name:        "remainder from truncated fees stays with the seller",
			amount:      999,
			royaltyRate: RatioFromPercent(20),
			networkFee:  RatioFromPercent(1),
			level:       GlobalListing(),
			want:        FeeSplit{Net: 791, Royalty: 199, NetworkFee: 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitFees(tt.amount, tt.royaltyRate, tt.networkFee, tt.level)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.amount, got.Total())
		})
	}
}
