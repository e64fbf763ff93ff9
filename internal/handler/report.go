package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/thriftx/storefront/internal/domain/report"
)

const defaultReportWindow = 30 * 24 * time.Hour

// ReportSummary returns the admin overview for [from, to). Both accept
// RFC 3339 timestamps or dates; the default is the last 30 days.
func (h *Handler) ReportSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	to := time.Now().UTC()
	if s := q.Get("to"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to: "+err.Error())
			return
		}
		to = t
	}
	from := to.Add(-defaultReportWindow)
	if s := q.Get("from"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from: "+err.Error())
			return
		}
		from = t
	}

	s, err := h.reports.Summary(r.Context(), report.Period{From: from, To: to})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSummary(e, s) })
}

// SellerSummary returns the authenticated seller's dashboard.
func (h *Handler) SellerSummary(w http.ResponseWriter, r *http.Request) {
	st, err := h.reports.SellerSummary(r.Context(), sellerID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSellerStats(e, st) })
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
