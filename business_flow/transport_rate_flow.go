package businessflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/amirphl/kargo/app/dto"
	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/repository"
	"github.com/amirphl/kargo/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// TransportRateFlow handles the administration of route rates
type TransportRateFlow interface {
	SaveTransportRate(ctx context.Context, actor Actor, req *dto.SaveTransportRateRequest, metadata *ClientMetadata) (*dto.TransportRateDTO, error)
	ListTransportRates(ctx context.Context, actor Actor, req *dto.ListTransportRatesRequest) (*dto.ListTransportRatesResponse, error)
	SetTransportRateActive(ctx context.Context, actor Actor, id uint, active bool, metadata *ClientMetadata) (*dto.TransportRateDTO, error)
	ImportTransportRates(ctx context.Context, actor Actor, workbook io.Reader, metadata *ClientMetadata) (*dto.ImportTransportRatesResponse, error)
	ExportTransportRates(ctx context.Context, actor Actor) (string, []byte, error)
}

// TransportRateFlowImpl implements the transport rate administration
type TransportRateFlowImpl struct {
	rateRepo  repository.TransportRateRepository
	auditRepo repository.AuditLogRepository
	db        *gorm.DB
}

// NewTransportRateFlow creates a new transport rate flow
func NewTransportRateFlow(
	rateRepo repository.TransportRateRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
) TransportRateFlow {
	return &TransportRateFlowImpl{
		rateRepo:  rateRepo,
		auditRepo: auditRepo,
		db:        db,
	}
}

func (f *TransportRateFlowImpl) SaveTransportRate(ctx context.Context, actor Actor, req *dto.SaveTransportRateRequest, metadata *ClientMetadata) (*dto.TransportRateDTO, error) {
	if err := requireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	rate, err := transportRateFromRequest(req)
	if err != nil {
		return nil, err
	}

	var saved *models.TransportRate
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.rateRepo.Upsert(txCtx, []*models.TransportRate{rate}); err != nil {
			return NewBusinessError("TRANSPORT_RATE_SAVE_FAILED", "Failed to save transport rate", err)
		}
		stored, err := f.rateRepo.ByKey(txCtx, rate.Key())
		if err != nil || stored == nil {
			return NewBusinessError("TRANSPORT_RATE_SAVE_FAILED", "Failed to reload transport rate", err)
		}
		if err := writeAuditLog(txCtx, f.auditRepo, actor, auditRecord{
			Action:      models.AuditActionTransportRateSaved,
			EntityType:  "transport_rate",
			EntityID:    stored.ID,
			Description: fmt.Sprintf("Rate %s-%s %s set to %.4f/kg", stored.OriginCountry, stored.DestinationCountry, stored.TransportMode, stored.RatePerKg),
		}, metadata); err != nil {
			return NewBusinessError("AUDIT_LOG_FAILED", "Failed to write audit log", err)
		}
		saved = stored
		return nil
	})
	if err != nil {
		logSystemError(ctx, "SaveTransportRate", err)
		return nil, err
	}

	out := ToTransportRateDTO(saved)
	return &out, nil
}

func (f *TransportRateFlowImpl) ListTransportRates(ctx context.Context, actor Actor, req *dto.ListTransportRatesRequest) (*dto.ListTransportRatesResponse, error) {
	if err := requireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	filter := models.TransportRateFilter{IsActive: req.IsActive}
	if req.OriginCountry != nil {
		filter.OriginCountry = utils.ToPtr(strings.ToUpper(strings.TrimSpace(*req.OriginCountry)))
	}
	if req.DestinationCountry != nil {
		filter.DestinationCountry = utils.ToPtr(strings.ToUpper(strings.TrimSpace(*req.DestinationCountry)))
	}
	if req.TransportMode != nil {
		mode, err := models.ParseTransportMode(*req.TransportMode)
		if err != nil {
			return nil, fieldError("transport_mode", err.Error())
		}
		filter.TransportMode = &mode
	}

	page, pageSize := normalizePaging(req.Page, req.PageSize)
	total, err := f.rateRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("TRANSPORT_RATE_LIST_FAILED", "Failed to count transport rates", err)
	}
	rows, err := f.rateRepo.ByFilter(ctx, filter, "origin_country ASC, destination_country ASC, transport_mode ASC", int(pageSize), pageOffset(page, pageSize))
	if err != nil {
		return nil, NewBusinessError("TRANSPORT_RATE_LIST_FAILED", "Failed to list transport rates", err)
	}

	items := make([]dto.TransportRateDTO, 0, len(rows))
	for _, r := range rows {
		items = append(items, ToTransportRateDTO(r))
	}
	return &dto.ListTransportRatesResponse{
		Items: items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages(total, pageSize),
		},
	}, nil
}

func (f *TransportRateFlowImpl) SetTransportRateActive(ctx context.Context, actor Actor, id uint, active bool, metadata *ClientMetadata) (*dto.TransportRateDTO, error) {
	if err := requireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	var updated *models.TransportRate
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.rateRepo.SetActive(txCtx, id, active); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransportRateNotFound
			}
			return NewBusinessError("TRANSPORT_RATE_UPDATE_FAILED", "Failed to update transport rate", err)
		}
		rate, err := f.rateRepo.ByID(txCtx, id)
		if err != nil {
			return NewBusinessError("TRANSPORT_RATE_UPDATE_FAILED", "Failed to reload transport rate", err)
		}
		if rate == nil {
			return ErrTransportRateNotFound
		}
		if err := writeAuditLog(txCtx, f.auditRepo, actor, auditRecord{
			Action:      models.AuditActionTransportRateToggled,
			EntityType:  "transport_rate",
			EntityID:    id,
			Description: fmt.Sprintf("Rate %d active=%t", id, active),
			Metadata:    map[string]any{"is_active": active},
		}, metadata); err != nil {
			return NewBusinessError("AUDIT_LOG_FAILED", "Failed to write audit log", err)
		}
		updated = rate
		return nil
	})
	if err != nil {
		logSystemError(ctx, "SetTransportRateActive", err)
		return nil, err
	}

	out := ToTransportRateDTO(updated)
	return &out, nil
}

// ImportTransportRates upserts every row of the first sheet of an xlsx workbook.
// A single invalid row rejects the whole workbook.
func (f *TransportRateFlowImpl) ImportTransportRates(ctx context.Context, actor Actor, workbook io.Reader, metadata *ClientMetadata) (*dto.ImportTransportRatesResponse, error) {
	if err := requireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	rates, rowErrs, err := ParseTransportRateWorkbook(workbook)
	if err != nil {
		return nil, err
	}
	if len(rowErrs) > 0 {
		var errs ValidationErrors
		for _, re := range rowErrs {
			errs.Addf(fmt.Sprintf("rows[%d]", re.Row), "%s", re.Message)
		}
		return nil, errs.Err()
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.rateRepo.Upsert(txCtx, rates); err != nil {
			return NewBusinessError("RATE_IMPORT_FAILED", "Failed to import transport rates", err)
		}
		if err := writeAuditLog(txCtx, f.auditRepo, actor, auditRecord{
			Action:      models.AuditActionTransportRatesImport,
			EntityType:  "transport_rate",
			Description: fmt.Sprintf("Imported %d transport rates", len(rates)),
			Metadata:    map[string]any{"rows": len(rates)},
		}, metadata); err != nil {
			return NewBusinessError("AUDIT_LOG_FAILED", "Failed to write audit log", err)
		}
		return nil
	})
	if err != nil {
		logSystemError(ctx, "ImportTransportRates", err)
		return nil, err
	}

	return &dto.ImportTransportRatesResponse{
		Message:  "Transport rates imported",
		Imported: len(rates),
	}, nil
}

var rateSheetHeader = []string{"origin_country", "destination_country", "transport_mode", "rate_per_kg", "rate_per_m3", "notes", "is_active"}

// ExportTransportRates writes every rate to a workbook the import accepts back
func (f *TransportRateFlowImpl) ExportTransportRates(ctx context.Context, actor Actor) (string, []byte, error) {
	if err := requireRoles(actor, models.RoleAdmin); err != nil {
		return "", nil, err
	}

	rows, err := f.rateRepo.ByFilter(ctx, models.TransportRateFilter{}, "origin_country ASC, destination_country ASC, transport_mode ASC", 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("TRANSPORT_RATE_LIST_FAILED", "Failed to list transport rates", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "rates"
	xl.SetSheetName(xl.GetSheetName(0), sheet)
	_ = xl.SetSheetRow(sheet, "A1", &rateSheetHeader)

	for i, r := range rows {
		record := []any{
			r.OriginCountry,
			r.DestinationCountry,
			string(r.TransportMode),
			r.RatePerKg,
			r.RatePerM3,
			utils.Deref(r.Notes),
			r.IsActive == nil || *r.IsActive,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(sheet, cell, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	return "transport_rates.xlsx", buf.Bytes(), nil
}

// ParseTransportRateWorkbook reads rates from the first sheet. Row 1 is a header naming
// the columns; origin_country, destination_country, transport_mode and rate_per_kg are required.
// Row numbers in the returned errors are 1-based as shown by spreadsheet tools.
func ParseTransportRateWorkbook(r io.Reader) ([]*models.TransportRate, []dto.ImportRowError, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, NewBusinessError("RATE_IMPORT_UNREADABLE", "File is not a readable xlsx workbook", ErrValidation)
	}
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows(xl.GetSheetName(0))
	if err != nil {
		return nil, nil, NewBusinessError("RATE_IMPORT_UNREADABLE", "Failed to read the first sheet", ErrValidation)
	}
	if len(rows) < 2 {
		return nil, nil, ErrRateImportEmpty
	}

	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, name := range rateSheetHeader[:4] {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, nil, NewBusinessErrorf("RATE_IMPORT_HEADER", "missing columns: %s", ErrValidation, strings.Join(missing, ", "))
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var (
		rates  []*models.TransportRate
		errs   []dto.ImportRowError
		seenAt = map[models.RateKey]int{}
	)
	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlankRow(row) {
			continue
		}
		rate, msg := parseRateRow(func(name string) string { return cell(row, name) })
		if msg != "" {
			errs = append(errs, dto.ImportRowError{Row: rowNum, Message: msg})
			continue
		}
		if prev, dup := seenAt[rate.Key()]; dup {
			errs = append(errs, dto.ImportRowError{Row: rowNum, Message: fmt.Sprintf("duplicate of row %d", prev)})
			continue
		}
		seenAt[rate.Key()] = rowNum
		rates = append(rates, rate)
	}

	if len(rates) == 0 && len(errs) == 0 {
		return nil, nil, ErrRateImportEmpty
	}
	return rates, errs, nil
}

func parseRateRow(cell func(string) string) (*models.TransportRate, string) {
	origin := strings.ToUpper(cell("origin_country"))
	if !isCountryCode(origin) {
		return nil, fmt.Sprintf("origin_country %q is not a 2-letter country code", origin)
	}
	dest := strings.ToUpper(cell("destination_country"))
	if !isCountryCode(dest) {
		return nil, fmt.Sprintf("destination_country %q is not a 2-letter country code", dest)
	}
	mode, err := models.ParseTransportMode(cell("transport_mode"))
	if err != nil {
		return nil, err.Error()
	}
	perKg, err := strconv.ParseFloat(cell("rate_per_kg"), 64)
	if err != nil || !positive(perKg) {
		return nil, "rate_per_kg must be a positive number"
	}
	perM3 := 0.0
	if v := cell("rate_per_m3"); v != "" {
		perM3, err = strconv.ParseFloat(v, 64)
		if err != nil || !finite(perM3) || perM3 < 0 {
			return nil, "rate_per_m3 must be zero or positive"
		}
	}
	active := true
	if v := cell("is_active"); v != "" {
		active, err = strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			return nil, "is_active must be true or false"
		}
	}

	return &models.TransportRate{
		OriginCountry:      origin,
		DestinationCountry: dest,
		TransportMode:      mode,
		RatePerKg:          perKg,
		RatePerM3:          perM3,
		Notes:              utils.NilIfEmpty(cell("notes")),
		IsActive:           utils.ToPtr(active),
	}, ""
}

func transportRateFromRequest(req *dto.SaveTransportRateRequest) (*models.TransportRate, error) {
	var errs ValidationErrors
	origin := strings.ToUpper(strings.TrimSpace(req.OriginCountry))
	if !isCountryCode(origin) {
		errs.Add("origin_country", "must be a 2-letter country code")
	}
	dest := strings.ToUpper(strings.TrimSpace(req.DestinationCountry))
	if !isCountryCode(dest) {
		errs.Add("destination_country", "must be a 2-letter country code")
	}
	mode, err := models.ParseTransportMode(req.TransportMode)
	if err != nil {
		errs.Add("transport_mode", err.Error())
	}
	if !positive(req.RatePerKg) {
		errs.Add("rate_per_kg", "must be positive")
	}
	if !finite(req.RatePerM3) || req.RatePerM3 < 0 {
		errs.Add("rate_per_m3", "must be zero or positive")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &models.TransportRate{
		OriginCountry:      origin,
		DestinationCountry: dest,
		TransportMode:      mode,
		RatePerKg:          req.RatePerKg,
		RatePerM3:          req.RatePerM3,
		Notes:              req.Notes,
		IsActive:           utils.ToPtr(active),
	}, nil
}

func isCountryCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
