package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"spacegrid/internal/database"
	"spacegrid/internal/export"
	"spacegrid/internal/models"
	"spacegrid/internal/service"
	"spacegrid/internal/timeutil"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// writeServiceError maps domain errors onto status codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrSpaceNotFound), errors.Is(err, database.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidBooking),
		errors.Is(err, models.ErrInvalidSlotMinutes),
		errors.Is(err, models.ErrInvalidSpace),
		errors.Is(err, timeutil.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type scheduleQuery struct {
	date    timeutil.Date
	minutes models.SlotMinutes
	now     time.Time
}

func (s *HTTPServer) parseScheduleQuery(r *http.Request) (scheduleQuery, error) {
	q := r.URL.Query()
	var out scheduleQuery

	dateStr := strings.TrimSpace(q.Get("date"))
	if dateStr == "" {
		return out, errors.New("date is required")
	}
	d, err := timeutil.ParseDate(dateStr)
	if err != nil {
		return out, errors.New("invalid date format; expected YYYY-MM-DD")
	}
	out.date = d

	out.minutes = s.defaultSlot
	if raw := strings.TrimSpace(q.Get("slot")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || !models.SlotMinutes(n).Valid() {
			return out, models.ErrInvalidSlotMinutes
		}
		out.minutes = models.SlotMinutes(n)
	}

	if raw := strings.TrimSpace(q.Get("now")); raw != "" {
		now, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return out, errors.New("invalid now; expected RFC3339")
		}
		out.now = now
	}
	return out, nil
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		if err := s.svc.Health(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleListSpaces(w http.ResponseWriter, r *http.Request) {
	spaces, err := s.svc.Spaces.ListSpaces(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if spaces == nil {
		spaces = []models.Space{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"spaces": spaces})
}

func (s *HTTPServer) handleGetSpace(w http.ResponseWriter, r *http.Request) {
	space, err := s.svc.Spaces.GetSpace(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, space)
}

func (s *HTTPServer) handleSpaceSlots(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseScheduleQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	spaceID := r.PathValue("id")
	out, err := s.svc.Schedule.DaySlots(r.Context(), spaceID, q.date, q.minutes, q.now)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"space_id":     spaceID,
		"date":         q.date.String(),
		"slot_minutes": q.minutes,
		"slots":        out,
	})
}

func (s *HTTPServer) handleSchedule(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseScheduleQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	grid, err := s.svc.Schedule.DayGrid(r.Context(), q.date, q.minutes, q.now)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

func (s *HTTPServer) handleScheduleExport(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseScheduleQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	grid, err := s.svc.Schedule.DayGrid(r.Context(), q.date, q.minutes, q.now)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteGrid(&buf, grid); err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(grid)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pageSize, err := intParam(r, "pageSize", models.DefaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.svc.Bookings.ListBookings(r.Context(), page, pageSize)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.svc.Bookings.CreateBooking(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

type changeRequest struct {
	ChangedBy string `json:"changed_by"`
}

// changedBy reads the optional actor from the body, then the query string.
func changedBy(r *http.Request) string {
	var body changeRequest
	if r.Body != nil && r.ContentLength != 0 {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	if by := strings.TrimSpace(body.ChangedBy); by != "" {
		return by
	}
	if by := strings.TrimSpace(r.URL.Query().Get("changed_by")); by != "" {
		return by
	}
	return "api"
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.svc.Bookings.CancelBooking(r.Context(), r.PathValue("id"), changedBy(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Bookings.DeleteBooking(r.Context(), r.PathValue("id"), changedBy(r)); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
