package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/batahq/bata-backend/api/responses"
	pkgerrors "github.com/batahq/bata-backend/pkg/errors"
	"github.com/batahq/bata-backend/pkg/logger"
	pkgredis "github.com/batahq/bata-backend/pkg/redis"
)

const criticalIdempotencyTTL = 7 * 24 * time.Hour

// guardedRoutes maps "METHOD chi-pattern" to the retention window for its
// idempotency records. Every entry here moves money, so all keep their
// records for 7 days; routes not listed are not guarded.
var guardedRoutes = map[string]time.Duration{
	"POST /api/v1/checkout":                           criticalIdempotencyTTL,
	"POST /api/v1/orders/{orderId}/transition":        criticalIdempotencyTTL,
	"POST /api/v1/orders/{orderId}/confirm-delivery":  criticalIdempotencyTTL,
	"POST /api/v1/wallet/withdraw":                    criticalIdempotencyTTL,
	"POST /api/v1/orders/{orderId}/disputes":          criticalIdempotencyTTL,
	"POST /api/admin/v1/disputes/{disputeId}/resolve": criticalIdempotencyTTL,
}

// idempotencyRecord is the JSON shape persisted to Redis. The request hash
// lets us reject a key that is replayed with a different payload.
type idempotencyRecord struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

// Idempotency makes guarded POST routes safe to retry. The first request
// with a given Idempotency-Key runs normally and its response is recorded;
// identical retries get the recorded response back without re-executing.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := recordTTL(r)
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if clientKey == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			requestHash := base64.StdEncoding.EncodeToString(sum[:])

			scope := strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
			key := store.IdempotencyKey(scope, clientKey)

			if done := replayIfRecorded(w, r, logg, store, key, requestHash); done {
				return
			}

			capture := &bufferedWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)

			record := idempotencyRecord{
				Status:      capture.status,
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
				RequestHash: requestHash,
			}
			if ct := capture.Header().Get("Content-Type"); ct != "" {
				record.Headers = map[string]string{"Content-Type": ct}
			}

			payload, err := json.Marshal(record)
			if err != nil {
				if logg != nil {
					logg.Error(r.Context(), "marshal idempotency record", err)
				}
				return
			}
			if _, err := store.SetNX(r.Context(), key, string(payload), ttl); err != nil {
				if logg != nil {
					logg.Error(r.Context(), "persist idempotency record", err)
				}
			}
		})
	}
}

// replayIfRecorded serves the recorded response for key when one exists.
// It reports true when it wrote a response (replay, conflict, or store
// failure) and the handler chain should stop.
func replayIfRecorded(w http.ResponseWriter, r *http.Request, logg *logger.Logger, store pkgredis.IdempotencyStore, key, requestHash string) bool {
	stored, err := store.Get(r.Context(), key)
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return true
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return true
	}
	if record.RequestHash != requestHash {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return true
	}

	if ct := record.Headers["Content-Type"]; ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(record.Status)
	if decoded, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(decoded)
	}
	return true
}

// recordTTL looks up the matched chi route pattern in guardedRoutes.
func recordTTL(r *http.Request) (time.Duration, bool) {
	pattern := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			pattern = p
		}
	}
	if pattern == "" {
		return 0, false
	}
	ttl, ok := guardedRoutes[r.Method+" "+pattern]
	return ttl, ok
}

// bufferedWriter tees the handler's response so it can be recorded.
type bufferedWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) WriteHeader(status int) {
	b.status = status
	b.ResponseWriter.WriteHeader(status)
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.body.Write(p)
	return b.ResponseWriter.Write(p)
}
