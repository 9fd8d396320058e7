package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"resit/internal/analysis"
	"resit/internal/core"
	"resit/internal/dashboard"
	"resit/internal/log"
	"resit/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) parseRange(w http.ResponseWriter, r *http.Request) (dashboard.Range, bool) {
	rng, err := ParseRangeParams(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return dashboard.Range{}, false
	}
	return rng, true
}

// handleDaily serves per-day aggregates. Sorting only reorders the rows;
// metrics are computed over the whole range.
func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	field, desc, err := ParseDailySort(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}
	rng, ok := s.parseRange(w, r)
	if !ok {
		return
	}

	rep, err := s.analysis.Daily(r.Context(), rng)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	rep.Days = analysis.SortDays(rep.Days, field, desc)
	NewResponse().Data(rep).Write(w, r)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	rng, ok := s.parseRange(w, r)
	if !ok {
		return
	}
	rep, err := s.analysis.Daily(r.Context(), rng)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	NewResponse().
		Data(SummaryResponse{
			From:          rep.From,
			To:            rep.To,
			Currency:      rep.Currency,
			TotalAmount:   rep.Metrics.TotalSpending,
			AverageAmount: rep.Metrics.AveragePerReceipt,
			Metrics:       rep.Metrics,
		}).
		Write(w, r)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	rng, ok := s.parseRange(w, r)
	if !ok {
		return
	}
	breakdown, err := s.analysis.Categories(r.Context(), rng)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	NewResponse().
		Data(CategoriesResponse{
			From:              boundString(rng.From),
			To:                boundString(rng.To),
			Currency:          rng.Currency,
			CategoryBreakdown: breakdown,
		}).
		Write(w, r)
}

// handleAnalytics serves the summary and the category breakdown of a range
// in one response.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	rng, ok := s.parseRange(w, r)
	if !ok {
		return
	}
	rep, breakdown, err := report.Build(r.Context(), s.analysis, rng)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	NewResponse().Data(toAnalyticsResponse(rep, breakdown)).Write(w, r)
}

// handleExport renders the range as an xlsx workbook. The workbook is built
// in memory so that failures can still be reported as JSON.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rng, ok := s.parseRange(w, r)
	if !ok {
		return
	}

	rep, breakdown, err := report.Build(r.Context(), s.analysis, rng)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, rep, breakdown); err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.FileName(rep)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func boundString(d core.Date) string {
	if d.IsEmpty() {
		return ""
	}
	return d.Key()
}
