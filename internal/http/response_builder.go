package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"expense-tracker/internal/core"
	"expense-tracker/internal/log"
)

// detailResponse is the error body for everything but validation failures.
type detailResponse struct {
	Detail string `json:"detail"`
}

// fieldProblem is one entry of a 422 body.
type fieldProblem struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type validationResponse struct {
	Detail []fieldProblem `json:"detail"`
}

// internalErrorBody is sent when a response value cannot be encoded,
// for example a sum that overflowed to +Inf.
var internalErrorBody = []byte(`{"detail":"Internal Server Error"}` + "\n")

// writeJSON encodes v before touching the status line so an unencodable
// value still turns into a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode response", log.FieldError, err, log.FieldStatusCode, status)
		status, body = http.StatusInternalServerError, internalErrorBody
	} else {
		body = append(body, '\n')
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}

func writeValidation(w http.ResponseWriter, verr *core.ValidationError) {
	problems := make([]fieldProblem, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		loc := []string{f.Source}
		if f.Field != "" {
			loc = append(loc, f.Field)
		}
		problems = append(problems, fieldProblem{Loc: loc, Msg: f.Message, Type: f.Kind})
	}
	writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Detail: problems})
}

// writeError maps service errors to status codes. Unknown errors are logged
// and hidden behind a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr)
	case errors.Is(err, core.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Transaction not found")
	default:
		ctx := r.Context()
		log.FromContext(ctx).WithComponent(log.ComponentHTTP).ErrorContext(ctx, "Request failed",
			log.FieldOperation, op,
			log.FieldError, err)
		writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
