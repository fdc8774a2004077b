package middleware

import (
	"net/http"
	"regexp"
	"time"

	"github.com/bitumen-hub/catalog-assistant/internal/observability"
)

var (
	uuidSegmentRegex    = regexp.MustCompile(`/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}(/|$)`)
	numericSegmentRegex = regexp.MustCompile(`/[0-9]+(/|$)`)
)

// Metrics records request count and duration. When metrics is nil, recording is skipped.
// Put Metrics outermost so duration is full request time.
func Metrics(metrics observability.APIMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			metrics.RecordRequest(r.Context(), r.Method, normalizeRoute(r.URL.Path), rw.statusCode, time.Since(start))
		})
	}
}

// normalizeRoute replaces ID path segments with {id} to bound cardinality.
func normalizeRoute(path string) string {
	path = uuidSegmentRegex.ReplaceAllString(path, "/{id}$1")

	return numericSegmentRegex.ReplaceAllString(path, "/{id}$1")
}

type statusRecorder struct {
	http.ResponseWriter

	statusCode  int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.statusCode = code
		r.wroteHeader = true
	}

	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
