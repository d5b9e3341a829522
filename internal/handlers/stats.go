package handlers

import "net/http"

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	AvailableForCaller int64 `json:"available_for_caller"`
	AvailableTotal     int64 `json:"available_total"`
	DeliveredTotal     int64 `json:"delivered_total"`
	CreatedTotal       int64 `json:"created_total"`
}

// Stats returns exchange statistics. The counts are recent snapshots,
// not a consistent view.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	sig := h.signals(w, r)

	stats, err := h.svc.Stats(r.Context(), sig)
	if err != nil {
		h.exchangeError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		AvailableForCaller: stats.AvailableForCaller,
		AvailableTotal:     stats.AvailableTotal,
		DeliveredTotal:     stats.DeliveredTotal,
		CreatedTotal:       stats.CreatedTotal,
	})
}
