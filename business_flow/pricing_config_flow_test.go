package businessflow

import (
	"strings"
	"testing"

	"github.com/amirphl/kargo/app/dto"
	"github.com/amirphl/kargo/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pricingRequest(keys func(models.TransportMode) string) *dto.UpdatePricingConfigRequest {
	req := &dto.UpdatePricingConfigRequest{
		Currency:                   "XOF",
		DefaultRatePerKg:           1500,
		VolumetricWeightRatios:     map[string]float64{},
		UseVolumetricWeightPerMode: map[string]bool{},
		TransportMultipliers:       map[string]float64{},
		CargoTypeSurcharges:        map[string]float64{"general": 0, "DANGEROUS": 0.5},
		PrioritySurcharges:         map[string]float64{"standard": 0, "EXPRESS": 0.5},
		DeliverySpeedsPerMode:      map[string]dto.DeliverySpeedDTO{},
	}
	for _, mode := range models.AllTransportModes {
		k := keys(mode)
		req.VolumetricWeightRatios[k] = 5000
		req.UseVolumetricWeightPerMode[k] = mode != models.TransportModeSea
		req.TransportMultipliers[k] = 1
		req.DeliverySpeedsPerMode[k] = dto.DeliverySpeedDTO{Min: 3, Max: 10}
	}
	return req
}

func TestPricingConfigFromRequestAcceptsAnyKeyCase(t *testing.T) {
	tests := []struct {
		name string
		keys func(models.TransportMode) string
	}{
		{"upper", func(m models.TransportMode) string { return string(m) }},
		{"lower", func(m models.TransportMode) string { return strings.ToLower(string(m)) }},
		{"padded", func(m models.TransportMode) string { return " " + strings.ToLower(string(m)) + " " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := pricingConfigFromRequest(pricingRequest(tt.keys))
			require.NoError(t, err)
			for _, mode := range models.AllTransportModes {
				assert.InDelta(t, 5000, cfg.VolumetricWeightRatios[mode], 1e-9, mode)
				assert.InDelta(t, 1, cfg.TransportMultipliers[mode], 1e-9, mode)
				assert.Equal(t, 10, cfg.DeliverySpeedsPerMode[mode].Max, mode)
			}
			assert.False(t, cfg.UseVolumetricWeightPerMode[models.TransportModeSea])
			assert.InDelta(t, 0.5, cfg.CargoTypeSurcharges[models.CargoTypeDangerous], 1e-9)
		})
	}
}

func TestPricingConfigFromRequestReportsMissingModes(t *testing.T) {
	req := pricingRequest(func(m models.TransportMode) string { return string(m) })
	delete(req.TransportMultipliers, string(models.TransportModeRail))
	delete(req.DeliverySpeedsPerMode, string(models.TransportModeAir))

	_, err := pricingConfigFromRequest(req)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "transport_multipliers.RAIL")
	assert.Contains(t, err.Error(), "delivery_speeds_per_mode.AIR")
	assert.NotContains(t, err.Error(), "volumetric_weight_ratios")
}

func TestPricingConfigFromRequestInvalidValueIsNotAlsoMissing(t *testing.T) {
	req := pricingRequest(func(m models.TransportMode) string { return strings.ToLower(string(m)) })
	req.VolumetricWeightRatios["road"] = 0

	_, err := pricingConfigFromRequest(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "volumetric_weight_ratios.road: must be greater than 0")
	assert.NotContains(t, err.Error(), "missing value")
}

func TestPricingConfigFromRequestRejectsUnknownKeys(t *testing.T) {
	req := pricingRequest(func(m models.TransportMode) string { return string(m) })
	req.TransportMultipliers["PIGEON"] = 2
	req.CargoTypeSurcharges["LIVESTOCK"] = 0.1

	_, err := pricingConfigFromRequest(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown transport mode "PIGEON"`)
	assert.Contains(t, err.Error(), `unknown cargo type "LIVESTOCK"`)
}
