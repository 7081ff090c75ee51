package businessflow_test

import (
	"testing"

	businessflow "github.com/amirphl/kargo/business_flow"
	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitConfig() *models.PricingConfig {
	return &models.PricingConfig{
		Version:          3,
		IsActive:         true,
		Currency:         "XOF",
		DefaultRatePerKg: 1.0,
		DefaultRatePerM3: 100,
		VolumetricWeightRatios: models.ModeRatios{
			models.TransportModeRoad: 3000,
			models.TransportModeSea:  1000,
			models.TransportModeAir:  6000,
			models.TransportModeRail: 3000,
		},
		UseVolumetricWeightPerMode: models.ModeFlags{
			models.TransportModeRoad: true,
			models.TransportModeSea:  false,
			models.TransportModeAir:  true,
			models.TransportModeRail: true,
		},
		TransportMultipliers: models.ModeRatios{
			models.TransportModeRoad: 1.0,
			models.TransportModeSea:  0.6,
			models.TransportModeAir:  3.5,
		},
		CargoTypeSurcharges: models.CargoSurcharges{
			models.CargoTypeGeneral:   0,
			models.CargoTypeDangerous: 0.5,
			models.CargoTypeFragile:   0.3,
			models.CargoTypeBulk:      -0.1,
		},
		PrioritySurcharges: models.PrioritySurcharges{
			models.PriorityEconomy:  -0.1,
			models.PriorityStandard: 0,
			models.PriorityExpress:  0.5,
			models.PriorityUrgent:   1.0,
		},
		DeliverySpeedsPerMode: models.DeliverySpeeds{
			models.TransportModeRoad: {Min: 5, Max: 10},
			models.TransportModeSea:  {Min: 25, Max: 45},
			models.TransportModeAir:  {Min: 2, Max: 5},
		},
	}
}

var frToBF = businessflow.Route{OriginCountry: "FR", DestinationCountry: "BF"}

func roadOnly() []models.TransportMode {
	return []models.TransportMode{models.TransportModeRoad}
}

func TestEstimateMultiPackage_Examples(t *testing.T) {
	tests := []struct {
		name        string
		cargo       models.CargoType
		priority    models.Priority
		lineTotal   float64
		totalBefore float64
		totalPrice  float64
	}{
		{"general standard", models.CargoTypeGeneral, models.PriorityStandard, 20, 20, 20},
		{"general express", models.CargoTypeGeneral, models.PriorityExpress, 20, 20, 30},
		{"dangerous standard", models.CargoTypeDangerous, models.PriorityStandard, 30, 30, 30},
		{"bulk economy", models.CargoTypeBulk, models.PriorityEconomy, 18, 18, 16.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packages := []models.QuotePackageLine{{Description: "boxes", Quantity: 2, CargoType: tt.cargo, Weight: 10}}

			est, err := businessflow.EstimateMultiPackage(frToBF, packages, roadOnly(), tt.priority, unitConfig(), nil)
			require.NoError(t, err)
			require.Len(t, est.Lines, 1)

			assert.Equal(t, tt.lineTotal, est.Lines[0].LineTotal)
			assert.Equal(t, tt.lineTotal/2, est.Lines[0].UnitPrice)
			assert.Equal(t, tt.totalBefore, est.TotalBeforePriority)
			assert.InDelta(t, tt.totalPrice, est.TotalPrice, 1e-9)
			assert.Equal(t, 2, est.TotalPackageCount)
			assert.Equal(t, 20.0, est.TotalWeight)
			assert.Equal(t, 3, est.PricingConfigVersion)
			assert.Equal(t, "XOF", est.Currency)
		})
	}
}

func TestEstimateMultiPackage_LineTotalNeverNegative(t *testing.T) {
	cfg := unitConfig()
	cfg.CargoTypeSurcharges[models.CargoTypeBulk] = -1.5
	cfg.PrioritySurcharges[models.PriorityEconomy] = -2

	packages := []models.QuotePackageLine{{Quantity: 3, CargoType: models.CargoTypeBulk, Weight: 4}}
	est, err := businessflow.EstimateMultiPackage(frToBF, packages, roadOnly(), models.PriorityEconomy, cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, 0.0, est.Lines[0].LineTotal)
	assert.Equal(t, 0.0, est.TotalBeforePriority)
	assert.Equal(t, 0.0, est.TotalPrice)
}

func TestEstimateMultiPackage_VolumetricWeight(t *testing.T) {
	// 100x100x60 cm = 600000 cm3; ROAD ratio 3000 -> 200 kg, SEA ratio 1000 -> 600 kg
	bulky := models.QuotePackageLine{
		Quantity:  1,
		CargoType: models.CargoTypeGeneral,
		Weight:    50,
		Length:    utils.ToPtr(100.0),
		Width:     utils.ToPtr(100.0),
		Height:    utils.ToPtr(60.0),
	}

	t.Run("wins on road when greater", func(t *testing.T) {
		est, err := businessflow.EstimateMultiPackage(frToBF, []models.QuotePackageLine{bulky}, roadOnly(), models.PriorityStandard, unitConfig(), nil)
		require.NoError(t, err)
		assert.Equal(t, 200.0, est.Lines[0].BillableWeight)
		assert.Equal(t, 200.0, est.Lines[0].LineTotal)
		assert.Equal(t, 200.0, est.TotalBillableWeight)
		assert.Equal(t, 50.0, est.TotalWeight)
	})

	t.Run("ignored on sea when disabled", func(t *testing.T) {
		modes := []models.TransportMode{models.TransportModeSea}
		est, err := businessflow.EstimateMultiPackage(frToBF, []models.QuotePackageLine{bulky}, modes, models.PriorityStandard, unitConfig(), nil)
		require.NoError(t, err)
		assert.Equal(t, 50.0, est.Lines[0].BillableWeight)
		assert.Equal(t, 30.0, est.Lines[0].LineTotal, "default rate 1.0 x sea multiplier 0.6")
	})

	t.Run("actual weight wins when heavier", func(t *testing.T) {
		heavy := bulky
		heavy.Weight = 450
		est, err := businessflow.EstimateMultiPackage(frToBF, []models.QuotePackageLine{heavy}, roadOnly(), models.PriorityStandard, unitConfig(), nil)
		require.NoError(t, err)
		assert.Equal(t, 450.0, est.Lines[0].BillableWeight)
	})

	t.Run("partial dimensions count as zero", func(t *testing.T) {
		partial := bulky
		partial.Height = nil
		est, err := businessflow.EstimateMultiPackage(frToBF, []models.QuotePackageLine{partial}, roadOnly(), models.PriorityStandard, unitConfig(), nil)
		require.NoError(t, err)
		assert.Equal(t, 50.0, est.Lines[0].BillableWeight)
	})
}

func TestEstimateMultiPackage_RouteRateOverridesDefault(t *testing.T) {
	rates := businessflow.NewRateTable([]*models.TransportRate{
		{OriginCountry: "FR", DestinationCountry: "BF", TransportMode: models.TransportModeRoad, RatePerKg: 2.5, IsActive: utils.ToPtr(true)},
		{OriginCountry: "FR", DestinationCountry: "BF", TransportMode: models.TransportModeAir, RatePerKg: 9, IsActive: utils.ToPtr(false)},
	})
	packages := []models.QuotePackageLine{{Quantity: 2, CargoType: models.CargoTypeGeneral, Weight: 10}}

	est, err := businessflow.EstimateMultiPackage(frToBF, packages, roadOnly(), models.PriorityStandard, unitConfig(), rates)
	require.NoError(t, err)
	assert.Equal(t, 2.5, est.Lines[0].RatePerKg)
	assert.Equal(t, 50.0, est.Lines[0].LineTotal)

	air := []models.TransportMode{models.TransportModeAir}
	est, err = businessflow.EstimateMultiPackage(frToBF, packages, air, models.PriorityStandard, unitConfig(), rates)
	require.NoError(t, err)
	assert.Equal(t, 3.5, est.Lines[0].RatePerKg, "inactive route rate falls back to default x multiplier")
}

func TestEstimateMultiPackage_MissingConfigEntriesUseNeutralValues(t *testing.T) {
	cfg := unitConfig()
	packages := []models.QuotePackageLine{{Quantity: 1, CargoType: models.CargoTypeElectronics, Weight: 10}}
	rail := []models.TransportMode{models.TransportModeRail}

	est, err := businessflow.EstimateMultiPackage(frToBF, packages, rail, models.PriorityStandard, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, est.Lines[0].RatePerKg, "no RAIL multiplier means 1")
	assert.Equal(t, 10.0, est.Lines[0].LineTotal, "no ELECTRONICS surcharge means 0")
	assert.Equal(t, 0, est.EstimatedDeliveryDays, "no RAIL speed configured")
}

func TestEstimateMultiPackage_Reconciles(t *testing.T) {
	packages := []models.QuotePackageLine{
		{Quantity: 3, CargoType: models.CargoTypeFragile, Weight: 1.337},
		{Quantity: 7, CargoType: models.CargoTypeGeneral, Weight: 2.25},
		{Quantity: 1, CargoType: models.CargoTypeDangerous, Weight: 0.4},
	}
	cfg := unitConfig()
	cfg.DefaultRatePerKg = 1733.33

	est, err := businessflow.EstimateMultiPackage(frToBF, packages, roadOnly(), models.PriorityUrgent, cfg, nil)
	require.NoError(t, err)

	sum := 0.0
	for _, l := range est.Lines {
		assert.GreaterOrEqual(t, l.LineTotal, 0.0)
		assert.InDelta(t, l.LineTotal, l.UnitPrice*float64(l.Quantity), 1e-6)
		sum += l.LineTotal
	}
	assert.InDelta(t, sum, est.TotalBeforePriority, 1e-6)
	assert.InDelta(t, est.TotalBeforePriority*2, est.TotalPrice, 0.005, "urgent surcharge applied once to the order")
	assert.Equal(t, 11, est.TotalPackageCount)
}

func TestEstimateMultiPackage_UnitPriceIsExactQuotient(t *testing.T) {
	cfg := unitConfig()
	packages := []models.QuotePackageLine{{Quantity: 3, CargoType: models.CargoTypeGeneral, Weight: 10.0 / 3}}

	est, err := businessflow.EstimateMultiPackage(frToBF, packages, roadOnly(), models.PriorityStandard, cfg, nil)
	require.NoError(t, err)
	require.Len(t, est.Lines, 1)

	line := est.Lines[0]
	assert.Equal(t, 10.0, line.LineTotal)
	assert.NotEqual(t, 3.33, line.UnitPrice)
	assert.InDelta(t, 10.0/3, line.UnitPrice, 1e-9)
	assert.InDelta(t, line.LineTotal, line.UnitPrice*3, 1e-9)
}

func TestEstimateMultiPackage_DominantCargoType(t *testing.T) {
	t.Run("greatest aggregate weight", func(t *testing.T) {
		packages := []models.QuotePackageLine{
			{Quantity: 1, CargoType: models.CargoTypeFragile, Weight: 30},
			{Quantity: 4, CargoType: models.CargoTypeGeneral, Weight: 5},
			{Quantity: 1, CargoType: models.CargoTypeGeneral, Weight: 15},
		}
		est, err := businessflow.EstimateMultiPackage(frToBF, packages, roadOnly(), models.PriorityStandard, unitConfig(), nil)
		require.NoError(t, err)
		assert.Equal(t, models.CargoTypeGeneral, est.DominantCargoType)
	})

	t.Run("tie goes to first occurrence", func(t *testing.T) {
		packages := []models.QuotePackageLine{
			{Quantity: 2, CargoType: models.CargoTypeFragile, Weight: 10},
			{Quantity: 1, CargoType: models.CargoTypeGeneral, Weight: 20},
		}
		est, err := businessflow.EstimateMultiPackage(frToBF, packages, roadOnly(), models.PriorityStandard, unitConfig(), nil)
		require.NoError(t, err)
		assert.Equal(t, models.CargoTypeFragile, est.DominantCargoType)
	})
}

func TestEstimateMultiPackage_MultiModePolicy(t *testing.T) {
	packages := []models.QuotePackageLine{{Quantity: 1, CargoType: models.CargoTypeGeneral, Weight: 10}}
	modes := []models.TransportMode{models.TransportModeAir, models.TransportModeSea, models.TransportModeAir}

	est, err := businessflow.EstimateMultiPackage(frToBF, packages, modes, models.PriorityStandard, unitConfig(), nil)
	require.NoError(t, err)

	assert.Equal(t, []models.TransportMode{models.TransportModeAir, models.TransportModeSea}, est.TransportModes)
	assert.Equal(t, models.TransportModeAir, est.RatingMode)
	assert.Equal(t, 35.0, est.Lines[0].LineTotal, "first mode rates every line")
	assert.Equal(t, 45, est.EstimatedDeliveryDays, "slowest maximum")
	assert.Equal(t, 2, est.EstimatedDeliveryDaysMin, "fastest minimum")
}

func TestEstimateMultiPackage_Deterministic(t *testing.T) {
	packages := []models.QuotePackageLine{
		{Quantity: 2, CargoType: models.CargoTypeFragile, Weight: 3.3, Length: utils.ToPtr(40.0), Width: utils.ToPtr(30.0), Height: utils.ToPtr(20.0)},
		{Quantity: 5, CargoType: models.CargoTypeBulk, Weight: 12},
	}
	first, err := businessflow.EstimateMultiPackage(frToBF, packages, roadOnly(), models.PriorityExpress, unitConfig(), nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := businessflow.EstimateMultiPackage(frToBF, packages, roadOnly(), models.PriorityExpress, unitConfig(), nil)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEstimateMultiPackage_Errors(t *testing.T) {
	valid := []models.QuotePackageLine{{Quantity: 1, CargoType: models.CargoTypeGeneral, Weight: 1}}

	tests := []struct {
		name     string
		route    businessflow.Route
		packages []models.QuotePackageLine
		modes    []models.TransportMode
		priority models.Priority
		fields   []string
	}{
		{"empty packages", frToBF, nil, roadOnly(), models.PriorityStandard, []string{"packages"}},
		{"no modes", frToBF, valid, nil, models.PriorityStandard, []string{"transport_modes"}},
		{"unknown mode", frToBF, valid, []models.TransportMode{"TELEPORT"}, models.PriorityStandard, []string{"transport_modes[0]"}},
		{"unknown priority", frToBF, valid, roadOnly(), "ASAP", []string{"priority"}},
		{"bad route", businessflow.Route{OriginCountry: "FRA"}, valid, roadOnly(), models.PriorityStandard, []string{"origin_country", "destination_country"}},
		{
			"bad lines", frToBF,
			[]models.QuotePackageLine{
				{Quantity: 1, CargoType: models.CargoTypeGeneral, Weight: 1},
				{Quantity: 0, CargoType: models.CargoTypeGeneral, Weight: -2},
				{Quantity: 1, CargoType: "LIQUID", Weight: 1},
			},
			roadOnly(), models.PriorityStandard,
			[]string{"packages[1].quantity", "packages[1].weight", "packages[2].cargo_type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := businessflow.EstimateMultiPackage(tt.route, tt.packages, tt.modes, tt.priority, unitConfig(), nil)
			require.Error(t, err)
			assert.Nil(t, est)
			assert.True(t, businessflow.IsValidation(err))

			var fields []string
			for _, fe := range businessflow.ValidationDetails(err) {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}

	t.Run("missing config", func(t *testing.T) {
		_, err := businessflow.EstimateMultiPackage(frToBF, valid, roadOnly(), models.PriorityStandard, nil, nil)
		assert.ErrorIs(t, err, businessflow.ErrPricingConfigMissing)
	})
}
