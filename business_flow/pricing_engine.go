package businessflow

import (
	"fmt"
	"strings"

	"github.com/amirphl/kargo/models"
	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

// Route is the origin/destination country pair of a quote
type Route struct {
	OriginCountry      string
	DestinationCountry string
}

// RateTable holds the active route rates keyed by route and mode
type RateTable map[models.RateKey]models.TransportRate

// NewRateTable indexes rates, ignoring inactive rows
func NewRateTable(rates []*models.TransportRate) RateTable {
	table := make(RateTable, len(rates))
	for _, r := range rates {
		if r == nil || (r.IsActive != nil && !*r.IsActive) {
			continue
		}
		table[r.Key()] = *r
	}
	return table
}

// QuoteEstimate is the priced result of a multi-package request
type QuoteEstimate struct {
	Lines                    []models.QuoteEstimateLine
	TransportModes           []models.TransportMode
	RatingMode               models.TransportMode
	Priority                 models.Priority
	PrioritySurcharge        float64
	TotalWeight              float64
	TotalBillableWeight      float64
	TotalPackageCount        int
	TotalBeforePriority      float64
	TotalPrice               float64
	DominantCargoType        models.CargoType
	EstimatedDeliveryDays    int
	EstimatedDeliveryDaysMin int
	Currency                 string
	PricingConfigVersion     int
}

// EstimateMultiPackage prices packages on route. It performs no I/O: the configuration
// snapshot and the route rates are supplied by the caller.
//
// When several transport modes are given, the first one rates every line and the
// slowest mode sets the delivery estimate.
func EstimateMultiPackage(route Route, packages []models.QuotePackageLine, modes []models.TransportMode, priority models.Priority, cfg *models.PricingConfig, rates RateTable) (*QuoteEstimate, error) {
	if cfg == nil {
		return nil, ErrPricingConfigMissing
	}

	modes = dedupeModes(modes)
	if err := validateEstimateInput(route, packages, modes, priority); err != nil {
		return nil, err
	}

	rating := modes[0]
	ratePerKg := resolveRatePerKg(route, rating, cfg, rates)

	est := &QuoteEstimate{
		Lines:                make([]models.QuoteEstimateLine, 0, len(packages)),
		TransportModes:       modes,
		RatingMode:           rating,
		Priority:             priority,
		PrioritySurcharge:    cfg.PrioritySurcharges[priority],
		Currency:             cfg.Currency,
		PricingConfigVersion: cfg.Version,
	}

	totalBefore := decimal.Zero
	totalWeight := decimal.Zero
	totalBillable := decimal.Zero
	cargoWeight := make(map[models.CargoType]decimal.Decimal)
	var cargoOrder []models.CargoType

	for _, line := range packages {
		qty := decimal.NewFromInt(int64(line.Quantity))
		weight := decimal.NewFromFloat(line.Weight)
		billable := billableWeight(line, rating, cfg)

		base := billable.Mul(ratePerKg).Mul(qty)
		coefficient := decimal.NewFromInt(1).Add(decimal.NewFromFloat(cfg.CargoTypeSurcharges[line.CargoType]))
		lineTotal := clampZero(base.Mul(coefficient)).Round(moneyPlaces)
		// unrounded so unit price x quantity reconciles with the line total
		unitPrice := lineTotal.Div(qty)

		est.Lines = append(est.Lines, models.QuoteEstimateLine{
			Description:    line.Description,
			Quantity:       line.Quantity,
			CargoType:      line.CargoType,
			Weight:         line.Weight,
			BillableWeight: billable.Round(3).InexactFloat64(),
			RatePerKg:      ratePerKg.InexactFloat64(),
			UnitPrice:      unitPrice.InexactFloat64(),
			LineTotal:      lineTotal.InexactFloat64(),
		})

		totalBefore = totalBefore.Add(lineTotal)
		lineWeight := weight.Mul(qty)
		totalWeight = totalWeight.Add(lineWeight)
		totalBillable = totalBillable.Add(billable.Mul(qty))
		est.TotalPackageCount += line.Quantity

		if _, seen := cargoWeight[line.CargoType]; !seen {
			cargoOrder = append(cargoOrder, line.CargoType)
		}
		cargoWeight[line.CargoType] = cargoWeight[line.CargoType].Add(lineWeight)
	}

	uplift := decimal.NewFromInt(1).Add(decimal.NewFromFloat(est.PrioritySurcharge))
	est.TotalBeforePriority = totalBefore.InexactFloat64()
	est.TotalPrice = clampZero(totalBefore.Mul(uplift)).Round(moneyPlaces).InexactFloat64()
	est.TotalWeight = totalWeight.Round(3).InexactFloat64()
	est.TotalBillableWeight = totalBillable.Round(3).InexactFloat64()
	est.DominantCargoType = dominantCargoType(cargoOrder, cargoWeight)
	est.EstimatedDeliveryDaysMin, est.EstimatedDeliveryDays = deliveryWindow(modes, cfg.DeliverySpeedsPerMode)

	return est, nil
}

func validateEstimateInput(route Route, packages []models.QuotePackageLine, modes []models.TransportMode, priority models.Priority) error {
	var errs ValidationErrors

	if len(strings.TrimSpace(route.OriginCountry)) != 2 {
		errs.Add("origin_country", "must be a two-letter country code")
	}
	if len(strings.TrimSpace(route.DestinationCountry)) != 2 {
		errs.Add("destination_country", "must be a two-letter country code")
	}
	if len(modes) == 0 {
		errs.Add("transport_modes", "at least one transport mode is required")
	}
	for i, m := range modes {
		if !m.Valid() {
			errs.Addf(fmt.Sprintf("transport_modes[%d]", i), "unknown transport mode %q", m)
		}
	}
	if !priority.Valid() {
		errs.Addf("priority", "unknown priority %q", priority)
	}
	if len(packages) == 0 {
		errs.Add("packages", "at least one package is required")
	}
	for i, p := range packages {
		if p.Quantity <= 0 {
			errs.Add(fmt.Sprintf("packages[%d].quantity", i), "must be greater than 0")
		}
		if p.Weight <= 0 {
			errs.Add(fmt.Sprintf("packages[%d].weight", i), "must be greater than 0")
		}
		if !p.CargoType.Valid() {
			errs.Addf(fmt.Sprintf("packages[%d].cargo_type", i), "unknown cargo type %q", p.CargoType)
		}
	}

	return errs.Err()
}

// billableWeight returns the per-unit weight used for rating
func billableWeight(line models.QuotePackageLine, mode models.TransportMode, cfg *models.PricingConfig) decimal.Decimal {
	actual := decimal.NewFromFloat(line.Weight)
	if !cfg.UseVolumetricWeightPerMode[mode] {
		return actual
	}
	volumetric := volumetricWeight(line, cfg.VolumetricWeightRatios[mode])
	if volumetric.GreaterThan(actual) {
		return volumetric
	}
	return actual
}

func volumetricWeight(line models.QuotePackageLine, ratio float64) decimal.Decimal {
	if ratio <= 0 || line.Length == nil || line.Width == nil || line.Height == nil {
		return decimal.Zero
	}
	if *line.Length <= 0 || *line.Width <= 0 || *line.Height <= 0 {
		return decimal.Zero
	}
	volume := decimal.NewFromFloat(*line.Length).
		Mul(decimal.NewFromFloat(*line.Width)).
		Mul(decimal.NewFromFloat(*line.Height))
	return volume.Div(decimal.NewFromFloat(ratio))
}

// resolveRatePerKg prefers an active route rate and falls back to the configured default
func resolveRatePerKg(route Route, mode models.TransportMode, cfg *models.PricingConfig, rates RateTable) decimal.Decimal {
	key := models.RateKey{
		OriginCountry:      strings.ToUpper(strings.TrimSpace(route.OriginCountry)),
		DestinationCountry: strings.ToUpper(strings.TrimSpace(route.DestinationCountry)),
		TransportMode:      mode,
	}
	if r, ok := rates[key]; ok && r.RatePerKg > 0 {
		return decimal.NewFromFloat(r.RatePerKg)
	}

	multiplier := 1.0
	if m, ok := cfg.TransportMultipliers[mode]; ok {
		multiplier = m
	}
	return decimal.NewFromFloat(cfg.DefaultRatePerKg).Mul(decimal.NewFromFloat(multiplier))
}

func dominantCargoType(order []models.CargoType, weights map[models.CargoType]decimal.Decimal) models.CargoType {
	var best models.CargoType
	bestWeight := decimal.NewFromInt(-1)
	for _, c := range order {
		if weights[c].GreaterThan(bestWeight) {
			best = c
			bestWeight = weights[c]
		}
	}
	return best
}

// deliveryWindow returns the fastest minimum and the slowest maximum over modes
func deliveryWindow(modes []models.TransportMode, speeds models.DeliverySpeeds) (int, int) {
	minDays, maxDays := 0, 0
	for _, m := range modes {
		s, ok := speeds[m]
		if !ok {
			continue
		}
		if minDays == 0 || s.Min < minDays {
			minDays = s.Min
		}
		if s.Max > maxDays {
			maxDays = s.Max
		}
	}
	return minDays, maxDays
}

func dedupeModes(modes []models.TransportMode) []models.TransportMode {
	seen := make(map[models.TransportMode]bool, len(modes))
	out := make([]models.TransportMode, 0, len(modes))
	for _, m := range modes {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
