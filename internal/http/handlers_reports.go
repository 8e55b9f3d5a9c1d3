package http

import (
	"bytes"
	"errors"
	"net/http"

	"expense-tracker/internal/charts"
	"expense-tracker/internal/core"
	"expense-tracker/internal/log"
)

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.svc.Balance(r.Context())
	if err != nil {
		writeError(w, r, log.OpBalance, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"balance": balance})
}

func (s *Server) handleDescriptions(w http.ResponseWriter, r *http.Request) {
	descs, err := s.svc.UniqueDescriptions(r.Context())
	if err != nil {
		writeError(w, r, log.OpDescribe, err)
		return
	}
	writeJSON(w, http.StatusOK, descs)
}

func (s *Server) frequentDescriptions(r *http.Request) ([]core.DescriptionCount, error) {
	verr := &core.ValidationError{}
	min := queryInt(r.URL.Query(), "min", defaultFrequentMin, verr)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return s.svc.FrequentDescriptions(r.Context(), min)
}

func (s *Server) handleFrequentDescriptions(w http.ResponseWriter, r *http.Request) {
	counts, err := s.frequentDescriptions(r)
	if err != nil {
		writeError(w, r, log.OpDescribe, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	rng, err := parseStatementRange(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpStatement, err)
		return
	}

	st, err := s.svc.Statement(r.Context(), rng)
	if err != nil {
		writeError(w, r, log.OpStatement, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCreditDebitChart(w http.ResponseWriter, r *http.Request) {
	totals, err := s.svc.Totals(r.Context())
	if err != nil {
		writeError(w, r, log.OpChart, err)
		return
	}

	var buf bytes.Buffer
	writePNG(w, r, &buf, charts.CreditDebit(&buf, totals))
}

func (s *Server) handleFrequentChart(w http.ResponseWriter, r *http.Request) {
	counts, err := s.frequentDescriptions(r)
	if err != nil {
		writeError(w, r, log.OpChart, err)
		return
	}

	var buf bytes.Buffer
	writePNG(w, r, &buf, charts.FrequentDescriptions(&buf, counts))
}

// writePNG sends a rendered chart. Rendering goes to a buffer first so a
// failure can still produce a proper error status.
func writePNG(w http.ResponseWriter, r *http.Request, buf *bytes.Buffer, renderErr error) {
	switch {
	case errors.Is(renderErr, charts.ErrNoData):
		writeDetail(w, http.StatusNotFound, "No data to chart")
		return
	case renderErr != nil:
		writeError(w, r, log.OpChart, renderErr)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
