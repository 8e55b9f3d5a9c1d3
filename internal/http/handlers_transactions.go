package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"expense-tracker/internal/core"
	"expense-tracker/internal/log"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	in, err := decodeTransactionInput(w, r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	tx, err := s.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	ctx := r.Context()
	log.FromContext(ctx).LogFields(ctx, slog.LevelInfo, "Transaction created",
		log.NewFields().WithOperation(log.OpCreate).WithTransaction(tx))
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	txs, err := s.svc.List(r.Context(), page)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// handleUpdateTransaction replaces a transaction. A null or missing created_at
// keeps the stored timestamp.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	verr := &core.ValidationError{}
	id := parseTransactionID(chi.URLParam(r, "transactionID"), verr)

	in, err := decodeTransactionInput(w, r)
	verr.Merge(err)
	if err := verr.OrNil(); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	tx, err := s.svc.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	ctx := r.Context()
	log.FromContext(ctx).LogFields(ctx, slog.LevelInfo, "Transaction updated",
		log.NewFields().WithOperation(log.OpUpdate).WithTransaction(tx))
	writeJSON(w, http.StatusOK, tx)
}
