package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amirphl/kargo/app/dto"
	businessflow "github.com/amirphl/kargo/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTrackingFlow struct {
	view     *dto.PublicTrackingView
	err      error
	gotLang  string
	gotInput string
}

func (s *stubTrackingFlow) TrackShipment(_ context.Context, trackingNumber, lang string) (*dto.PublicTrackingView, error) {
	s.gotInput = trackingNumber
	s.gotLang = lang
	if s.err != nil {
		return nil, s.err
	}
	if _, err := businessflow.NormalizeTrackingNumber(trackingNumber); err != nil {
		return nil, err
	}
	return s.view, nil
}

func newTrackingApp(flow businessflow.TrackingFlow) *fiber.App {
	app := fiber.New()
	h := NewTrackingHandler(flow)
	app.Get("/api/v1/tracking/:trackingNumber", h.Track)
	return app
}

func doGet(t *testing.T, app *fiber.App, target string, header map[string]string) (int, dto.APIResponse, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body dto.APIResponse
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body, string(raw)
}

func TestTrackReturnsPublicView(t *testing.T) {
	flow := &stubTrackingFlow{view: &dto.PublicTrackingView{
		TrackingNumber: "TRK-20250301-00012",
		Status:         "IN_TRANSIT",
		StatusLabel:    "In transit",
		Events:         []dto.PublicTrackingEvent{},
	}}
	status, body, raw := doGet(t, newTrackingApp(flow), "/api/v1/tracking/trk-20250301-00012?lang=en", nil)

	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, body.Success)
	assert.Equal(t, "en", flow.gotLang)
	assert.Equal(t, "trk-20250301-00012", flow.gotInput)
	assert.Contains(t, raw, `"status_label":"In transit"`)
}

func TestTrackLanguageFallsBackToHeader(t *testing.T) {
	flow := &stubTrackingFlow{view: &dto.PublicTrackingView{TrackingNumber: "TRK-20250301-00012"}}
	status, _, _ := doGet(t, newTrackingApp(flow), "/api/v1/tracking/TRK-20250301-00012", map[string]string{"Accept-Language": "en"})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "en", flow.gotLang)
}

func TestTrackStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		flow   *stubTrackingFlow
		number string
		status int
		code   string
	}{
		{"unknown or draft shipment", &stubTrackingFlow{}, "TRK-20250301-00099", fiber.StatusNotFound, "SHIPMENT_NOT_FOUND"},
		{"malformed number", &stubTrackingFlow{}, "QT-20250301-00001", fiber.StatusBadRequest, "VALIDATION_ERROR"},
		{"storage failure", &stubTrackingFlow{err: businessflow.NewBusinessError("SHIPMENT_LOAD_FAILED", "Failed to load shipment", errors.New("connection refused"))}, "TRK-20250301-00012", fiber.StatusInternalServerError, "SHIPMENT_LOAD_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body, raw := doGet(t, newTrackingApp(tt.flow), "/api/v1/tracking/"+tt.number, nil)
			assert.Equal(t, tt.status, status)
			assert.False(t, body.Success)
			assert.Contains(t, raw, `"code":"`+tt.code+`"`)
			assert.NotContains(t, raw, "connection refused")
		})
	}
}
