// Package idempotency replays the stored response of a request whose
// Idempotency-Key header has been seen before.
package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"expense-tracker/internal/log"
)

const (
	// Header is the standard HTTP header for idempotency keys
	Header = "Idempotency-Key"

	// HitHeader marks a replayed response.
	HitHeader = "X-Idempotency-Hit"

	// DefaultLockTimeout bounds how long a crashed request can hold a key.
	DefaultLockTimeout = 10 * time.Second

	maxKeyLength = 255
)

// Response is what gets replayed for a repeated key.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Store persists responses and per-key locks.
type Store interface {
	// Lookup returns the saved response for key, if any.
	Lookup(ctx context.Context, key string) (*Response, error)
	// Lock claims key for ttl. It reports false when another request holds it.
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Save(ctx context.Context, key string, resp Response, ttl time.Duration) error
}

// responseRecorder captures the status code and body while writing through.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rw *responseRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Middleware makes requests carrying an Idempotency-Key safe to retry:
//  1. a stored response for the key is replayed as is
//  2. a key held by an in-flight request yields 409
//  3. otherwise the request runs and a 2xx response is stored for ttl
//
// Requests without the header pass through untouched.
func Middleware(store Store, ttl, lockTimeout time.Duration) func(http.Handler) http.Handler {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(Header)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			logger := log.FromContext(ctx)

			if len(key) > maxKeyLength {
				writeDetail(w, http.StatusBadRequest, "Idempotency-Key must be at most 255 characters")
				return
			}

			// Scope keys by route so one key cannot replay another endpoint's response.
			scoped := r.Method + " " + strings.TrimSuffix(r.URL.Path, "/") + " " + key

			cached, err := store.Lookup(ctx, scoped)
			if err != nil {
				logger.ErrorContext(ctx, "Idempotency lookup failed", log.FieldError, err)
				writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
				return
			}
			if cached != nil {
				logger.InfoContext(ctx, "Idempotency cache hit", "key", key)
				if cached.ContentType != "" {
					w.Header().Set("Content-Type", cached.ContentType)
				}
				w.Header().Set(HitHeader, "true")
				w.WriteHeader(cached.Status)
				w.Write(cached.Body)
				return
			}

			acquired, err := store.Lock(ctx, scoped, lockTimeout)
			if err != nil {
				logger.ErrorContext(ctx, "Idempotency lock failed", log.FieldError, err)
				writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
				return
			}
			if !acquired {
				logger.WarnContext(ctx, "Concurrent request with same idempotency key", "key", key)
				writeDetail(w, http.StatusConflict, "A request with this idempotency key is currently being processed")
				return
			}

			// The client may hang up; bookkeeping must still finish.
			bg := context.WithoutCancel(ctx)
			defer func() {
				if err := store.Unlock(bg, scoped); err != nil {
					logger.ErrorContext(ctx, "Failed to release idempotency lock", log.FieldError, err)
				}
			}()

			rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.statusCode < 200 || rec.statusCode >= 300 {
				return
			}
			resp := Response{
				Status:      rec.statusCode,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			}
			if err := store.Save(bg, scoped, resp, ttl); err != nil {
				logger.ErrorContext(ctx, "Failed to store idempotent response", log.FieldError, err)
			}
		})
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
