package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"mesabook/internal/capacity"
	"mesabook/internal/metrics"
	"mesabook/internal/models"
)

func (s *HTTPServer) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_policy")

	id, err := restaurantID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	policy, err := s.db.GetPolicy(r.Context(), id)
	if errors.Is(err, capacity.ErrPolicyNotFound) {
		writeError(w, http.StatusNotFound, "no policy configured for this restaurant")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("get policy failed")
		writeError(w, http.StatusInternalServerError, "could not load policy")
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (s *HTTPServer) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("update_policy")

	if !s.isStaff(r) {
		writeError(w, http.StatusForbidden, "policy changes require a staff key")
		return
	}

	id, err := restaurantID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var policy models.RestaurantPolicy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	policy.RestaurantID = id

	if err := s.db.UpsertPolicy(r.Context(), &policy); err != nil {
		// UpsertPolicy validates before touching storage.
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.cache != nil {
		// Policy changes affect every cached day; rely on the short
		// TTL rather than enumerating keys.
		s.log.Debug().Int64("restaurant_id", id).Msg("policy updated, cached availability ages out via TTL")
	}
	writeJSON(w, http.StatusOK, &policy)
}

func (s *HTTPServer) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_slot_overrides")

	id, err := restaurantID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	overrides, err := s.db.ListSlotOverrides(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Msg("list overrides failed")
		writeError(w, http.StatusInternalServerError, "could not list overrides")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"restaurant_id": id,
		"overrides":     overrides,
	})
}

func (s *HTTPServer) handleUpsertOverride(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("upsert_slot_override")

	if !s.isStaff(r) {
		writeError(w, http.StatusForbidden, "override changes require a staff key")
		return
	}

	id, err := restaurantID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var override models.SlotOverride
	if err := json.NewDecoder(r.Body).Decode(&override); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	override.RestaurantID = id

	if err := s.db.UpsertSlotOverride(r.Context(), &override); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, &override)
}

func (s *HTTPServer) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_slot_override")

	if !s.isStaff(r) {
		writeError(w, http.StatusForbidden, "override changes require a staff key")
		return
	}

	id, err := restaurantID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	weekday, err := strconv.Atoi(r.URL.Query().Get("weekday"))
	if err != nil || weekday < 0 || weekday > 6 {
		writeError(w, http.StatusBadRequest, "weekday must be 0-6")
		return
	}
	slot := r.URL.Query().Get("slot")
	if _, err := models.ParseClock(slot); err != nil {
		writeError(w, http.StatusBadRequest, "slot must be HH:MM")
		return
	}

	err = s.db.DeleteSlotOverride(r.Context(), id, weekday, slot)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "override not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("delete override failed")
		writeError(w, http.StatusInternalServerError, "could not delete override")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"restaurant_id": id,
		"weekday":       weekday,
		"slot":          slot,
		"deleted_at":    time.Now().UTC(),
	})
}
