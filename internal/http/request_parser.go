package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"expense-tracker/internal/core"
)

const maxBodyBytes = 1 << 20

// Accepted created_at layouts. Layouts without a zone are read as UTC and
// fractional seconds are accepted after any seconds field.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// decodeTransactionInput reads a create or update payload. Every field problem
// is collected so the client sees them all at once.
func decodeTransactionInput(w http.ResponseWriter, r *http.Request) (core.TransactionInput, error) {
	var in core.TransactionInput
	verr := &core.ValidationError{}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		verr.Add(core.SourceBody, "", core.KindJSON, "request body could not be read")
		return in, verr
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			verr.Add(core.SourceBody, "", core.KindDict, "value is not a valid dict")
		} else {
			verr.Add(core.SourceBody, "", core.KindJSON, "JSON decode error")
		}
		return in, verr
	}
	if fields == nil {
		// A literal null body.
		verr.Add(core.SourceBody, "", core.KindDict, "value is not a valid dict")
		return in, verr
	}

	raw, ok := fields["type"]
	switch {
	case !ok:
		verr.Add(core.SourceBody, "type", core.KindMissing, "field required")
	case isNull(raw):
		verr.Add(core.SourceBody, "type", core.KindNone, "none is not an allowed value")
	default:
		var s string
		if json.Unmarshal(raw, &s) != nil || !core.TransactionType(s).IsValid() {
			verr.Add(core.SourceBody, "type", core.KindEnum, "value is not a valid enumeration member; permitted: 'credit', 'debit'")
		} else {
			in.Type = core.TransactionType(s)
		}
	}

	raw, ok = fields["amount"]
	switch {
	case !ok:
		verr.Add(core.SourceBody, "amount", core.KindMissing, "field required")
	case isNull(raw):
		verr.Add(core.SourceBody, "amount", core.KindNone, "none is not an allowed value")
	default:
		if err := json.Unmarshal(raw, &in.Amount); err != nil {
			verr.Add(core.SourceBody, "amount", core.KindFloat, "value is not a valid float")
		}
	}

	if raw, ok := fields["description"]; ok && !isNull(raw) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			verr.Add(core.SourceBody, "description", core.KindString, "str type expected")
		} else {
			in.Description = &s
		}
	}

	if raw, ok := fields["created_at"]; ok && !isNull(raw) {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			verr.Add(core.SourceBody, "created_at", core.KindDateTime, "invalid datetime format")
		} else if ts, err := parseTimestamp(s); err != nil {
			verr.Add(core.SourceBody, "created_at", core.KindDateTime, "invalid datetime format")
		} else {
			in.CreatedAt = &ts
		}
	}

	return in, verr.OrNil()
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// parseTimestamp accepts the layouts browsers and scripts commonly send.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// parseTransactionID reads the {transactionID} path segment.
func parseTransactionID(raw string, verr *core.ValidationError) int64 {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		verr.Add(core.SourcePath, "transaction_id", core.KindInteger, "value is not a valid integer")
	}
	return id
}

// queryInt returns the named query parameter or def when it is absent.
func queryInt(q url.Values, name string, def int, verr *core.ValidationError) int {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		verr.Add(core.SourceQuery, name, core.KindInteger, "value is not a valid integer")
		return def
	}
	return n
}

// parsePage reads skip and limit, defaulting to the first hundred rows.
func parsePage(q url.Values) (core.Page, error) {
	verr := &core.ValidationError{}
	page := core.DefaultPage()
	page.Skip = queryInt(q, "skip", page.Skip, verr)
	page.Limit = queryInt(q, "limit", page.Limit, verr)
	return page, verr.OrNil()
}

// parseStatementRange reads either month=YYYY-MM or from/to=YYYY-MM-DD.
// With neither the statement covers the whole history. month wins when both are given.
func parseStatementRange(q url.Values) (core.DateRange, error) {
	verr := &core.ValidationError{}

	if m := strings.TrimSpace(q.Get("month")); m != "" {
		t, err := time.Parse("2006-01", m)
		if err != nil {
			verr.Add(core.SourceQuery, "month", core.KindDate, "invalid month format, expected YYYY-MM")
			return core.DateRange{}, verr
		}
		return core.MonthRange(t.Year(), t.Month()), nil
	}

	from := queryDate(q, "from", verr)
	to := queryDate(q, "to", verr)
	if err := verr.OrNil(); err != nil {
		return core.DateRange{}, err
	}

	switch {
	case from != nil && to != nil:
		if to.Before(*from) {
			verr.Add(core.SourceQuery, "to", core.KindRange, "to must not be before from")
			return core.DateRange{}, verr
		}
		return core.DaysRange(*from, *to), nil
	case from != nil:
		return core.DateRange{From: from}, nil
	case to != nil:
		end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		return core.DateRange{To: &end}, nil
	default:
		return core.DateRange{}, nil
	}
}

func queryDate(q url.Values, name string, verr *core.ValidationError) *time.Time {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		verr.Add(core.SourceQuery, name, core.KindDate, "invalid date format, expected YYYY-MM-DD")
		return nil
	}
	return &t
}
