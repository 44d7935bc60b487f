package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	hr "github.com/julienschmidt/httprouter"
	"igloader/pkg/logger"
	"igloader/pkg/metrics"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// Middleware wraps a router handle
type Middleware func(hr.Handle) hr.Handle

// Chain composes h with ms; the last middleware runs first
func Chain(h hr.Handle, ms ...Middleware) hr.Handle {
	for _, m := range ms {
		h = m(h)
	}
	return h
}

type requestIDKey struct{}

// RequestIDFrom returns the request id stored by RequestID
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID echoes the incoming X-Request-ID or assigns a fresh uuid
func RequestID() Middleware {
	return func(h hr.Handle) hr.Handle {
		return func(w http.ResponseWriter, r *http.Request, p hr.Params) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			h(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)), p)
		}
	}
}

// PanicRecoverer turns a panic in the wrapped handle into a 500
func PanicRecoverer(log logger.Logger) Middleware {
	return func(h hr.Handle) hr.Handle {
		return func(w http.ResponseWriter, r *http.Request, p hr.Params) {
			defer func() {
				if rec := recover(); rec != nil {
					log.ErrorWithFields("recovered panic from handler", map[string]interface{}{
						"panic":      fmt.Sprint(rec),
						"path":       r.URL.Path,
						"request_id": RequestIDFrom(r.Context()),
					})
					writeJSON(w, http.StatusInternalServerError, ErrorResponse{
						Status: "error",
						Detail: "Internal Server Error",
					})
				}
			}()
			h(w, r, p)
		}
	}
}

// Instrument logs every request and records it under route
func Instrument(route string, log logger.Logger, rec metrics.Recorder) Middleware {
	return func(h hr.Handle) hr.Handle {
		return func(w http.ResponseWriter, r *http.Request, p hr.Params) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			h(sw, r, p)

			status := sw.Status()
			duration := time.Since(start)
			rec.ObserveRequest(r.Method, route, status, duration)
			logger.LogRequest(log.WithField("request_id", RequestIDFrom(r.Context())), r.Method, r.URL.Path, status, duration)
		}
	}
}

// statusWriter remembers the status code written through it
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Status returns the written status, 200 when nothing was written
func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
