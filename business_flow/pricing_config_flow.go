package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/amirphl/kargo/app/dto"
	"github.com/amirphl/kargo/config"
	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/repository"
	"github.com/amirphl/kargo/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// PricingConfigFlow manages the versioned pricing configuration
type PricingConfigFlow interface {
	// GetActiveConfig returns the snapshot used for pricing, from cache when possible
	GetActiveConfig(ctx context.Context) (*models.PricingConfig, error)
	AdminGetPricingConfig(ctx context.Context, actor Actor) (*dto.PricingConfigResponse, error)
	AdminUpdatePricingConfig(ctx context.Context, actor Actor, req *dto.UpdatePricingConfigRequest, metadata *ClientMetadata) (*dto.PricingConfigResponse, error)
	AdminListPricingConfigVersions(ctx context.Context, actor Actor, req *dto.ListPricingConfigVersionsRequest) (*dto.ListPricingConfigVersionsResponse, error)
}

type PricingConfigFlowImpl struct {
	configRepo  repository.PricingConfigRepository
	auditRepo   repository.AuditLogRepository
	db          *gorm.DB
	rc          *redis.Client
	cacheConfig *config.CacheConfig
}

func NewPricingConfigFlow(
	configRepo repository.PricingConfigRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
) PricingConfigFlow {
	return &PricingConfigFlowImpl{
		configRepo:  configRepo,
		auditRepo:   auditRepo,
		db:          db,
		rc:          rc,
		cacheConfig: cacheConfig,
	}
}

func cacheKey(cfg *config.CacheConfig, key string) string {
	if cfg == nil {
		return key
	}
	return cfg.RedisPrefix + key
}

func (f *PricingConfigFlowImpl) cacheTTL() time.Duration {
	if f.cacheConfig == nil || f.cacheConfig.DefaultTTL <= 0 {
		return 10 * time.Minute
	}
	return f.cacheConfig.DefaultTTL
}

func (f *PricingConfigFlowImpl) GetActiveConfig(ctx context.Context) (*models.PricingConfig, error) {
	key := cacheKey(f.cacheConfig, utils.ActivePricingConfigCacheKey)

	if f.rc != nil {
		if bs, err := f.rc.Get(ctx, key).Bytes(); err == nil && len(bs) > 0 {
			var cached models.PricingConfig
			if err := json.Unmarshal(bs, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	active, err := f.configRepo.Active(ctx)
	if err != nil {
		return nil, NewBusinessError("PRICING_CONFIG_LOAD_FAILED", "Failed to load pricing configuration", err)
	}
	if active == nil {
		logSystemError(ctx, "GetActiveConfig", ErrPricingConfigMissing)
		return nil, NewBusinessError("PRICING_CONFIG_MISSING", "Pricing is not configured", ErrPricingConfigMissing)
	}

	if f.rc != nil {
		if bs, err := json.Marshal(active); err == nil {
			_ = f.rc.Set(ctx, key, bs, f.cacheTTL()).Err()
		}
	}

	return active, nil
}

func (f *PricingConfigFlowImpl) invalidate(ctx context.Context) {
	if f.rc == nil {
		return
	}
	_ = f.rc.Del(ctx, cacheKey(f.cacheConfig, utils.ActivePricingConfigCacheKey)).Err()
}

func (f *PricingConfigFlowImpl) AdminGetPricingConfig(ctx context.Context, actor Actor) (*dto.PricingConfigResponse, error) {
	if err := requireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	active, err := f.GetActiveConfig(ctx)
	if err != nil {
		return nil, err
	}
	resp := ToPricingConfigResponse(active)
	return &resp, nil
}

func (f *PricingConfigFlowImpl) AdminUpdatePricingConfig(ctx context.Context, actor Actor, req *dto.UpdatePricingConfigRequest, metadata *ClientMetadata) (*dto.PricingConfigResponse, error) {
	if err := requireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	next, err := pricingConfigFromRequest(req)
	if err != nil {
		return nil, err
	}

	var saved *models.PricingConfig
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		current, err := f.configRepo.LockActive(txCtx)
		if err != nil {
			return NewBusinessError("PRICING_CONFIG_LOAD_FAILED", "Failed to load pricing configuration", err)
		}

		version := 1
		if current != nil {
			if req.ExpectedVersion != nil && *req.ExpectedVersion != current.Version {
				return &StateConflictError{
					Entity:        "pricing_config",
					CurrentStatus: fmt.Sprintf("version %d", current.Version),
					Action:        "update",
					Reason:        fmt.Sprintf("expected version %d", *req.ExpectedVersion),
				}
			}
			if err := f.configRepo.Deactivate(txCtx, current.ID); err != nil {
				return NewBusinessError("PRICING_CONFIG_UPDATE_FAILED", "Failed to supersede pricing configuration", err)
			}
			version = current.Version + 1
		} else {
			latest, err := f.configRepo.LatestVersion(txCtx)
			if err != nil {
				return NewBusinessError("PRICING_CONFIG_UPDATE_FAILED", "Failed to read pricing configuration versions", err)
			}
			version = latest + 1
		}

		next.Version = version
		next.IsActive = true
		next.UpdatedByID = actor.idPtr()
		if err := f.configRepo.Save(txCtx, next); err != nil {
			return NewBusinessError("PRICING_CONFIG_UPDATE_FAILED", "Failed to save pricing configuration", err)
		}

		if err := writeAuditLog(txCtx, f.auditRepo, actor, auditRecord{
			Action:      models.AuditActionPricingConfigUpdated,
			EntityType:  "pricing_config",
			EntityID:    next.ID,
			Description: fmt.Sprintf("Pricing configuration version %d activated", version),
			Metadata:    map[string]any{"version": version},
		}, metadata); err != nil {
			return NewBusinessError("AUDIT_LOG_FAILED", "Failed to write audit log", err)
		}

		saved = next
		return nil
	})
	if err != nil {
		logSystemError(ctx, "AdminUpdatePricingConfig", err)
		return nil, err
	}

	f.invalidate(ctx)

	resp := ToPricingConfigResponse(saved)
	return &resp, nil
}

func (f *PricingConfigFlowImpl) AdminListPricingConfigVersions(ctx context.Context, actor Actor, req *dto.ListPricingConfigVersionsRequest) (*dto.ListPricingConfigVersionsResponse, error) {
	if err := requireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	page, pageSize := normalizePaging(req.Page, req.PageSize)
	total, err := f.configRepo.Count(ctx, models.PricingConfigFilter{})
	if err != nil {
		return nil, NewBusinessError("PRICING_CONFIG_LIST_FAILED", "Failed to count pricing configurations", err)
	}
	rows, err := f.configRepo.ByFilter(ctx, models.PricingConfigFilter{}, "version DESC", int(pageSize), pageOffset(page, pageSize))
	if err != nil {
		return nil, NewBusinessError("PRICING_CONFIG_LIST_FAILED", "Failed to list pricing configurations", err)
	}

	items := make([]dto.PricingConfigResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, ToPricingConfigResponse(row))
	}

	return &dto.ListPricingConfigVersionsResponse{
		Items: items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages(total, pageSize),
		},
	}, nil
}

// pricingConfigFromRequest validates every field and key of req.
// Every transport mode must carry a ratio, a multiplier and a delivery speed.
func pricingConfigFromRequest(req *dto.UpdatePricingConfigRequest) (*models.PricingConfig, error) {
	var errs ValidationErrors

	if len(req.Currency) != 3 {
		errs.Add("currency", "must be a three-letter currency code")
	}
	if !positive(req.DefaultRatePerKg) {
		errs.Add("default_rate_per_kg", "must be greater than 0")
	}
	if req.DefaultRatePerM3 < 0 || !finite(req.DefaultRatePerM3) {
		errs.Add("default_rate_per_m3", "must be 0 or greater")
	}

	ratios := parseModeRatios("volumetric_weight_ratios", req.VolumetricWeightRatios, &errs)
	multipliers := parseModeRatios("transport_multipliers", req.TransportMultipliers, &errs)

	flags := make(models.ModeFlags, len(req.UseVolumetricWeightPerMode))
	for _, k := range sortedKeys(req.UseVolumetricWeightPerMode) {
		mode, err := models.ParseTransportMode(k)
		if err != nil {
			errs.Addf("use_volumetric_weight_per_mode."+k, "unknown transport mode %q", k)
			continue
		}
		flags[mode] = req.UseVolumetricWeightPerMode[k]
	}

	cargo := make(models.CargoSurcharges, len(req.CargoTypeSurcharges))
	for _, k := range sortedKeys(req.CargoTypeSurcharges) {
		ct, err := models.ParseCargoType(k)
		if err != nil {
			errs.Addf("cargo_type_surcharges."+k, "unknown cargo type %q", k)
			continue
		}
		v := req.CargoTypeSurcharges[k]
		if !finite(v) || v < -1 {
			errs.Add("cargo_type_surcharges."+k, "must be -1 or greater")
			continue
		}
		cargo[ct] = v
	}

	priorities := make(models.PrioritySurcharges, len(req.PrioritySurcharges))
	for _, k := range sortedKeys(req.PrioritySurcharges) {
		p, err := models.ParsePriority(k)
		if err != nil {
			errs.Addf("priority_surcharges."+k, "unknown priority %q", k)
			continue
		}
		v := req.PrioritySurcharges[k]
		if !finite(v) || v < -1 {
			errs.Add("priority_surcharges."+k, "must be -1 or greater")
			continue
		}
		priorities[p] = v
	}

	speeds := make(models.DeliverySpeeds, len(req.DeliverySpeedsPerMode))
	for _, k := range sortedKeys(req.DeliverySpeedsPerMode) {
		mode, err := models.ParseTransportMode(k)
		if err != nil {
			errs.Addf("delivery_speeds_per_mode."+k, "unknown transport mode %q", k)
			continue
		}
		s := req.DeliverySpeedsPerMode[k]
		if s.Min <= 0 || s.Min > s.Max {
			errs.Add("delivery_speeds_per_mode."+k, "requires 0 < min <= max")
			continue
		}
		speeds[mode] = models.DeliverySpeed{Min: s.Min, Max: s.Max}
	}

	for _, mode := range models.AllTransportModes {
		if !hasModeKey(req.VolumetricWeightRatios, mode) {
			errs.Addf("volumetric_weight_ratios."+string(mode), "missing value for %s", mode)
		}
		if !hasModeKey(req.TransportMultipliers, mode) {
			errs.Addf("transport_multipliers."+string(mode), "missing value for %s", mode)
		}
		if !hasModeKey(req.DeliverySpeedsPerMode, mode) {
			errs.Addf("delivery_speeds_per_mode."+string(mode), "missing value for %s", mode)
		}
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}

	return &models.PricingConfig{
		Currency:                   req.Currency,
		DefaultRatePerKg:           req.DefaultRatePerKg,
		DefaultRatePerM3:           req.DefaultRatePerM3,
		VolumetricWeightRatios:     ratios,
		UseVolumetricWeightPerMode: flags,
		TransportMultipliers:       multipliers,
		CargoTypeSurcharges:        cargo,
		PrioritySurcharges:         priorities,
		DeliverySpeedsPerMode:      speeds,
	}, nil
}

func parseModeRatios(field string, in map[string]float64, errs *ValidationErrors) models.ModeRatios {
	out := make(models.ModeRatios, len(in))
	for _, k := range sortedKeys(in) {
		mode, err := models.ParseTransportMode(k)
		if err != nil {
			errs.Addf(field+"."+k, "unknown transport mode %q", k)
			continue
		}
		if !positive(in[k]) {
			errs.Add(field+"."+k, "must be greater than 0")
			continue
		}
		out[mode] = in[k]
	}
	return out
}

// hasModeKey reports whether some key of m names mode, in any letter case
func hasModeKey[V any](m map[string]V, mode models.TransportMode) bool {
	for k := range m {
		if parsed, err := models.ParseTransportMode(k); err == nil && parsed == mode {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func positive(v float64) bool {
	return finite(v) && v > 0
}
