package businessflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPurchaseFeePolicy(t *testing.T) {
	policy := PurchaseFeePolicy{Rate: 0.15, Floor: 5000}

	tests := []struct {
		name     string
		product  float64
		delivery float64
		fee      float64
		total    float64
	}{
		{"rate above floor", 100000, 15000, 15000, 130000},
		{"floor applies", 20000, 3000, 5000, 28000},
		{"exactly at floor", 33333.34, 0, 5000, 38333.34},
		{"free product still pays floor", 0, 2500, 5000, 7500},
		{"rounded to cents", 12345.67, 0.1, 5000, 17345.77},
		{"fractional rate rounding", 40000.01, 0, 6000, 46000.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Compute(tt.product, tt.delivery)
			assert.Equal(t, tt.fee, got.ServiceFee)
			assert.Equal(t, tt.total, got.Total)
		})
	}
}

func TestDefaultPurchaseFeePolicy(t *testing.T) {
	got := DefaultPurchaseFeePolicy.Compute(200000, 0)
	assert.Equal(t, 30000.0, got.ServiceFee)
	assert.Equal(t, 230000.0, got.Total)
}
