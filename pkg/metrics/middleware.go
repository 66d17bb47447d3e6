package metrics

import (
	"net/http"
	"regexp"
	"strings"
	"time"
)

// statusRecorder captures the status code a handler writes.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush implements http.Flusher for streaming responses.
func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap returns the original ResponseWriter for http.ResponseController.
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// MiddlewareOptions configures the HTTP metrics middleware.
type MiddlewareOptions struct {
	// PathNormalizer maps request paths onto label values. Nil means
	// DefaultPathNormalizer.
	PathNormalizer func(string) string

	// SkipPaths lists paths to leave out of the metrics entirely.
	SkipPaths []string
}

// HTTPMiddleware records request count, duration and in-flight gauge
// for every request, with default options.
func HTTPMiddleware(registry *Registry) func(http.Handler) http.Handler {
	return HTTPMiddlewareWithOptions(registry, MiddlewareOptions{})
}

// HTTPMiddlewareWithOptions is HTTPMiddleware with explicit options.
func HTTPMiddlewareWithOptions(registry *Registry, opts MiddlewareOptions) func(http.Handler) http.Handler {
	normalize := opts.PathNormalizer
	if normalize == nil {
		normalize = DefaultPathNormalizer
	}

	skip := make(map[string]bool, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := normalize(r.URL.Path)
			if skip[path] {
				next.ServeHTTP(w, r)
				return
			}

			httpMetrics := registry.HTTP()
			httpMetrics.IncInFlight()
			defer httpMetrics.DecInFlight()

			rec := newStatusRecorder(w)
			start := time.Now()
			next.ServeHTTP(rec, r)

			httpMetrics.RecordRequest(r.Method, path, rec.status, time.Since(start).Seconds())
		})
	}
}

// uuidSegment matches a whole path segment holding a rule-set id.
var uuidSegment = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// DefaultPathNormalizer replaces id-shaped path segments with {id} so
// each route maps to one label value instead of one per resource.
func DefaultPathNormalizer(path string) string {
	segments := strings.Split(path, "/")
	changed := false
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if isDigits(seg) || uuidSegment.MatchString(seg) {
			segments[i] = "{id}"
			changed = true
		}
	}
	if !changed {
		return path
	}
	return strings.Join(segments, "/")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
