package server

import "net/http"

// securityHeadersMiddleware strips version-exposing response headers
// (spec's read/control API is an operator surface, not a public one, but
// the teacher applies this hardening to every HTTP response regardless).
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapper := &headerRemovalWriter{ResponseWriter: w}
		next.ServeHTTP(wrapper, r)
		wrapper.writeSecurityHeaders()
	})
}

type headerRemovalWriter struct {
	http.ResponseWriter
	written bool
}

func (w *headerRemovalWriter) WriteHeader(statusCode int) {
	w.writeSecurityHeaders()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *headerRemovalWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.writeSecurityHeaders()
	}
	return w.ResponseWriter.Write(b)
}

func (w *headerRemovalWriter) writeSecurityHeaders() {
	if w.written {
		return
	}
	w.written = true
	h := w.ResponseWriter.Header()
	h.Del("X-Powered-By")
	h.Set("Server", "pilotd")
}

func (w *headerRemovalWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
