package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spacegrid/internal/config"
	"spacegrid/internal/database"
	"spacegrid/internal/events"
	"spacegrid/internal/models"
	"spacegrid/internal/repository"
	"spacegrid/internal/service"
	"spacegrid/internal/slots"
	"spacegrid/internal/ticks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type testEnv struct {
	db     *database.DB
	server *HTTPServer
	bus    *events.EventBus
}

func newTestEnv(t *testing.T, cfg config.APIConfig) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.UpsertSpace(ctx, &models.Space{
		ID: "sala-1", Name: "Sala 1", TimeZone: "America/Panama", Capacity: 10,
		Schedule: []models.DaySchedule{{Weekday: models.Monday, Windows: []models.Window{{Start: "08:00", End: "10:00"}}}},
	}))

	bus := events.NewEventBus()
	svc := Services{
		Spaces:   service.NewSpaceService(db, bus, &logger),
		Bookings: service.NewBookingService(db, bus, &logger),
		Schedule: service.NewScheduleService(db, repository.NewMemoryGridCache(time.Minute), service.ScheduleOptions{
			Policy: slots.DefaultPolicy(),
			Ticks:  ticks.DefaultOptions(),
		}, &logger),
		Health: db.PingContext,
	}
	return &testEnv{db: db, server: NewHTTPServer(cfg, svc, 30, &logger), bus: bus}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func openAPIConfig() config.APIConfig {
	return config.APIConfig{Enabled: true, HTTP: config.APIHTTPConfig{Enabled: true}}
}

func TestHTTP_Health(t *testing.T) {
	env := newTestEnv(t, openAPIConfig())

	rec := env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.server.svc.Health = func(context.Context) error { return errors.New("down") }
	rec = env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTP_Spaces(t *testing.T) {
	env := newTestEnv(t, openAPIConfig())

	rec := env.do(t, http.MethodGet, "/api/v1/spaces", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[struct {
		Spaces []models.Space `json:"spaces"`
	}](t, rec)
	require.Len(t, list.Spaces, 1)
	assert.Equal(t, "sala-1", list.Spaces[0].ID)

	rec = env.do(t, http.MethodGet, "/api/v1/spaces/sala-1", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/spaces/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTP_SpaceSlots(t *testing.T) {
	env := newTestEnv(t, openAPIConfig())

	rec := env.do(t, http.MethodGet, "/api/v1/spaces/sala-1/slots?date=2025-08-18&slot=60&now=2025-08-18T13:30:00Z", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[struct {
		SpaceID     string        `json:"space_id"`
		SlotMinutes int           `json:"slot_minutes"`
		Slots       []models.Slot `json:"slots"`
	}](t, rec)
	assert.Equal(t, 60, body.SlotMinutes)
	require.Len(t, body.Slots, 2)
	// 13:30Z is 08:30 in Panama
	assert.Equal(t, models.SlotPast, body.Slots[0].State)
	assert.Equal(t, models.SlotAvailable, body.Slots[1].State)

	tests := []struct {
		name   string
		target string
		code   int
	}{
		{"missing date", "/api/v1/spaces/sala-1/slots", http.StatusBadRequest},
		{"bad date", "/api/v1/spaces/sala-1/slots?date=18.08.2025", http.StatusBadRequest},
		{"bad slot", "/api/v1/spaces/sala-1/slots?date=2025-08-18&slot=25", http.StatusBadRequest},
		{"bad now", "/api/v1/spaces/sala-1/slots?date=2025-08-18&now=yesterday", http.StatusBadRequest},
		{"unknown space", "/api/v1/spaces/nope/slots?date=2025-08-18", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, env.do(t, http.MethodGet, tt.target, nil, nil).Code)
		})
	}
}

func TestHTTP_Schedule(t *testing.T) {
	env := newTestEnv(t, openAPIConfig())

	rec := env.do(t, http.MethodGet, "/api/v1/schedule?date=2025-08-18&now=2025-08-17T00:00:00Z", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	grid := decodeBody[models.DayGrid](t, rec)
	assert.Equal(t, "America/Panama", grid.Zone)
	require.Len(t, grid.Rows, 5)
	assert.Equal(t, "08:00", grid.Rows[0].Label)
	assert.Equal(t, "10:00", grid.Rows[4].Label)
	assert.Nil(t, grid.Rows[4].Cells[0].Slot)
}

func TestHTTP_ScheduleExport(t *testing.T) {
	env := newTestEnv(t, openAPIConfig())

	rec := env.do(t, http.MethodGet, "/api/v1/schedule/export?date=2025-08-18&slot=60", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "schedule_2025-08-18_60m.xlsx")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Schedule", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Sala 1 (10)", v)
}

func TestHTTP_BookingLifecycle(t *testing.T) {
	env := newTestEnv(t, openAPIConfig())

	var published []string
	env.bus.Subscribe(func(ev *events.Event) error {
		published = append(published, ev.Type)
		return nil
	}, events.EventBookingCreated, events.EventBookingCancelled, events.EventBookingDeleted)

	create := map[string]any{
		"space_id":   "sala-1",
		"title":      "Retro",
		"created_by": "ana",
		"start":      "2025-08-18T08:00:00-05:00",
		"end":        "2025-08-18T09:00:00-05:00",
	}
	rec := env.do(t, http.MethodPost, "/api/v1/bookings", create, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booking := decodeBody[models.Booking](t, rec)
	assert.NotEmpty(t, booking.ID)
	assert.Equal(t, models.StatusConfirmed, booking.Status)

	rec = env.do(t, http.MethodGet, "/api/v1/spaces/sala-1/slots?date=2025-08-18&slot=60&now=2025-08-17T00:00:00Z", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"busy"`)

	rec = env.do(t, http.MethodGet, "/api/v1/bookings?page=1&pageSize=5", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[models.Page[models.Booking]](t, rec)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 5, page.PageSize)

	rec = env.do(t, http.MethodPost, "/api/v1/bookings/"+booking.ID+"/cancel", map[string]string{"changed_by": "admin"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusCancelled, decodeBody[models.Booking](t, rec).Status)

	rec = env.do(t, http.MethodPost, "/api/v1/bookings/"+booking.ID+"/cancel", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/bookings/"+booking.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/bookings/"+booking.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, []string{events.EventBookingCreated, events.EventBookingCancelled, events.EventBookingDeleted}, published)
}

func TestHTTP_CreateBookingErrors(t *testing.T) {
	env := newTestEnv(t, openAPIConfig())

	tests := []struct {
		name string
		body any
		code int
	}{
		{"unknown field", map[string]any{"space": "sala-1"}, http.StatusBadRequest},
		{"reversed interval", map[string]any{
			"space_id": "sala-1", "title": "x", "created_by": "a",
			"start": "2025-08-18T10:00:00Z", "end": "2025-08-18T09:00:00Z",
		}, http.StatusBadRequest},
		{"unknown space", map[string]any{
			"space_id": "nope", "title": "x", "created_by": "a",
			"start": "2025-08-18T09:00:00Z", "end": "2025-08-18T10:00:00Z",
		}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, env.do(t, http.MethodPost, "/api/v1/bookings", tt.body, nil).Code)
		})
	}

	rec := env.do(t, http.MethodGet, "/api/v1/bookings?page=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, openAPIConfig())

	rec := env.do(t, http.MethodPut, "/api/v1/spaces", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHTTPAuth(t *testing.T) {
	cfg := openAPIConfig()
	cfg.Auth = config.APIAuthConfig{
		Enabled: true,
		APIKeys: []config.APIClientKey{
			{Key: "reader", Extra: "r-extra", Permissions: []string{permReadSchedule}},
			{Key: "admin", Extra: "a-extra"},
		},
	}
	env := newTestEnv(t, cfg)

	reader := map[string]string{"x-api-key": "reader", "x-api-extra": "r-extra"}
	admin := map[string]string{"x-api-key": "admin", "x-api-extra": "a-extra"}

	tests := []struct {
		name    string
		method  string
		target  string
		headers map[string]string
		code    int
	}{
		{"health is public", http.MethodGet, "/healthz", nil, http.StatusOK},
		{"missing headers", http.MethodGet, "/api/v1/spaces", nil, http.StatusUnauthorized},
		{"bad key", http.MethodGet, "/api/v1/spaces", map[string]string{"x-api-key": "x", "x-api-extra": "y"}, http.StatusUnauthorized},
		{"bad extra", http.MethodGet, "/api/v1/spaces", map[string]string{"x-api-key": "reader", "x-api-extra": "nope"}, http.StatusUnauthorized},
		{"reader reads", http.MethodGet, "/api/v1/spaces", reader, http.StatusOK},
		{"reader lists bookings", http.MethodGet, "/api/v1/bookings", reader, http.StatusOK},
		{"reader cannot write", http.MethodDelete, "/api/v1/bookings/x", reader, http.StatusForbidden},
		{"admin allowed", http.MethodDelete, "/api/v1/bookings/x", admin, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.target, nil, tt.headers)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestHTTPAuth_RateLimit(t *testing.T) {
	cfg := openAPIConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 2}
	env := newTestEnv(t, cfg)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, env.do(t, http.MethodGet, "/api/v1/spaces", nil, nil).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRequiredPermissionHTTP(t *testing.T) {
	tests := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/api/v1/schedule", permReadSchedule},
		{http.MethodGet, "/api/v1/bookings", permReadSchedule},
		{http.MethodPost, "/api/v1/bookings", permWriteBookings},
		{http.MethodPost, "/api/v1/bookings/1/cancel", permWriteBookings},
		{http.MethodGet, "/metrics", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(""))
		assert.Equal(t, tt.want, requiredPermissionHTTP(req), tt.method+" "+tt.path)
	}
}
