package api

import (
	"net/http"
	"strconv"
	"time"

	"mesabook/internal/metrics"
)

// MaxDailyCapacityRangeDays bounds the daily-capacity range query.
const MaxDailyCapacityRangeDays = 90

// handleAvailability returns the per-slot availability snapshot for one
// calendar day. The read path is lenient: resolution failures degrade
// to all-available inside the engine rather than surfacing here.
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")

	id, err := restaurantID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	date := r.URL.Query().Get("date")
	if _, err := time.ParseInLocation("2006-01-02", date, time.UTC); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	partySize := 0
	if raw := r.URL.Query().Get("party_size"); raw != "" {
		partySize, err = strconv.Atoi(raw)
		if err != nil || partySize < 0 {
			writeError(w, http.StatusBadRequest, "party_size must be a non-negative integer")
			return
		}
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(r.Context(), id, date, partySize); ok {
			writeJSON(w, http.StatusOK, map[string]any{
				"restaurant_id": id,
				"date":          date,
				"party_size":    partySize,
				"time_slots":    cached,
			})
			return
		}
	}

	results, err := s.engine.ListSlots(r.Context(), id, date, partySize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.cache != nil {
		s.cache.Set(r.Context(), id, date, partySize, results)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"restaurant_id": id,
		"date":          date,
		"party_size":    partySize,
		"time_slots":    results,
	})
}

// handleDailyCapacity reports cover usage against the daily ceiling for
// a date range.
func (s *HTTPServer) handleDailyCapacity(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("daily_capacity")

	id, err := restaurantID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	startRaw := r.URL.Query().Get("start_date")
	endRaw := r.URL.Query().Get("end_date")
	if endRaw == "" {
		endRaw = startRaw
	}
	start, err := time.ParseInLocation("2006-01-02", startRaw, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	end, err := time.ParseInLocation("2006-01-02", endRaw, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}
	if int(end.Sub(start).Hours()/24) >= MaxDailyCapacityRangeDays {
		writeError(w, http.StatusBadRequest, "date range too large")
		return
	}

	partySize := 0
	if raw := r.URL.Query().Get("party_size"); raw != "" {
		partySize, err = strconv.Atoi(raw)
		if err != nil || partySize < 0 {
			writeError(w, http.StatusBadRequest, "party_size must be a non-negative integer")
			return
		}
	}

	days := make([]any, 0, 8)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		usage, err := s.engine.DailyUsage(r.Context(), id, d.Format("2006-01-02"), partySize)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "capacity data temporarily unavailable")
			return
		}
		days = append(days, usage)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"restaurant_id": id,
		"days":          days,
	})
}
