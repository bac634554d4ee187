package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"mesabook/internal/booking"
	"mesabook/internal/database"
	"mesabook/internal/export"
	"mesabook/internal/metrics"
)

type createReservationRequest struct {
	Date             string `json:"date"`
	Time             string `json:"time"`
	PartySize        int    `json:"party_size"`
	CustomerName     string `json:"customer_name"`
	CustomerPhone    string `json:"customer_phone"`
	Comment          string `json:"comment"`
	OverrideCapacity bool   `json:"override_capacity"`
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_reservation")

	id, err := restaurantID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.limiters.allow(s.clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, "too many reservation requests, slow down")
		return
	}

	var body createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if body.OverrideCapacity && !s.isStaff(r) {
		writeError(w, http.StatusForbidden, "capacity override requires a staff key")
		return
	}

	created, err := s.coord.Reserve(r.Context(), booking.ReserveRequest{
		RestaurantID:     id,
		Date:             body.Date,
		Time:             body.Time,
		PartySize:        body.PartySize,
		CustomerName:     body.CustomerName,
		CustomerPhone:    body.CustomerPhone,
		Comment:          body.Comment,
		OverrideCapacity: body.OverrideCapacity,
	})
	if err != nil {
		s.writeReserveError(w, err)
		return
	}

	if s.cache != nil {
		s.cache.Invalidate(r.Context(), id, created.Date)
	}

	writeJSON(w, http.StatusCreated, created)
}

// writeReserveError maps admission failures to the HTTP taxonomy. A
// retry budget exhausted under contention reads the same as a full slot
// so clients get one code to handle.
func (s *HTTPServer) writeReserveError(w http.ResponseWriter, err error) {
	var vErr *booking.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error_code": "validation_failed",
			"field":      vErr.Field,
			"message":    vErr.Reason,
		})
		return
	}

	var capErr *booking.CapacityError
	if errors.As(err, &capErr) {
		metrics.IncCapacityRejection(capErr.Constraint)
		writeJSON(w, http.StatusConflict, map[string]any{
			"error_code":   "capacity_exceeded",
			"message":      capErr.Message,
			"availability": capErr,
		})
		return
	}

	if errors.Is(err, booking.ErrTooManyConflicts) {
		metrics.IncCapacityRejection("conflict")
		writeJSON(w, http.StatusConflict, map[string]any{
			"error_code": "capacity_exceeded",
			"message":    "the requested time slot could not be booked, please try another slot",
		})
		return
	}

	s.log.Error().Err(err).Msg("reservation admission failed")
	writeError(w, http.StatusServiceUnavailable, "booking temporarily unavailable")
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *HTTPServer) handleUpdateReservationStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("update_reservation_status")

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	var body updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	updated, err := s.coord.UpdateStatus(r.Context(), id, body.Status)
	switch {
	case err == nil:
	case errors.Is(err, booking.ErrReservationNotFound):
		writeError(w, http.StatusNotFound, "reservation not found")
		return
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
		return
	default:
		var vErr *booking.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		s.log.Error().Err(err).Int64("reservation_id", id).Msg("status update failed")
		writeError(w, http.StatusInternalServerError, "could not update reservation")
		return
	}

	if s.cache != nil {
		s.cache.Invalidate(r.Context(), updated.RestaurantID, updated.Date)
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_reservations")

	id, err := restaurantID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := database.ReservationFilter{
		RestaurantID: id,
		Date:         r.URL.Query().Get("date"),
		Status:       r.URL.Query().Get("status"),
		Limit:        100,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			filter.Limit = n
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	reservations, err := s.db.ListReservations(r.Context(), filter)
	if err != nil {
		s.log.Error().Err(err).Msg("list reservations failed")
		writeError(w, http.StatusInternalServerError, "could not list reservations")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"restaurant_id": id,
		"reservations":  reservations,
		"count":         len(reservations),
	})
}

func (s *HTTPServer) handleExportReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_reservations")

	id, err := restaurantID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := database.ReservationFilter{
		RestaurantID: id,
		Date:         r.URL.Query().Get("date"),
		Status:       r.URL.Query().Get("status"),
	}
	reservations, err := s.db.ListReservations(r.Context(), filter)
	if err != nil {
		s.log.Error().Err(err).Msg("export reservations failed")
		writeError(w, http.StatusInternalServerError, "could not export reservations")
		return
	}

	title := fmt.Sprintf("Reservations %d", id)
	if filter.Date != "" {
		title = fmt.Sprintf("Reservations %d %s", id, filter.Date)
	}
	report, err := export.BuildReservationsReport(title, reservations)
	if err != nil {
		s.log.Error().Err(err).Msg("report build failed")
		writeError(w, http.StatusInternalServerError, "could not build report")
		return
	}
	defer report.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=reservations-%d.xlsx", id))
	if _, err := report.WriteTo(w); err != nil {
		s.log.Error().Err(err).Msg("report write failed")
	}
}
