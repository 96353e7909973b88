package app

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestLogging_PreservesStatusAndBody(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}), log)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/teapot", nil))

	if rr.Code != http.StatusTeapot {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Body.String() != "short and stout" {
		t.Fatalf("body=%q", rr.Body.String())
	}
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestLoggingResponseWriter_PassesHijackThrough(t *testing.T) {
	rec := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	lrw := &loggingResponseWriter{ResponseWriter: rec, status: http.StatusOK}

	if _, _, err := lrw.Hijack(); err != nil {
		t.Fatalf("Hijack: %v", err)
	}
	if !rec.hijacked {
		t.Fatalf("hijack did not reach the underlying writer")
	}
}

func TestLoggingResponseWriter_HijackWithoutSupport(t *testing.T) {
	lrw := &loggingResponseWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	if _, _, err := lrw.Hijack(); err == nil {
		t.Fatalf("expected error when the underlying writer cannot hijack")
	}
}

func TestLoggingResponseWriter_Unwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	lrw := &loggingResponseWriter{ResponseWriter: rec, status: http.StatusOK}
	if lrw.Unwrap() != rec {
		t.Fatalf("Unwrap must return the wrapped writer")
	}
}

func TestLoggingResponseWriter_CountsBytes(t *testing.T) {
	lrw := &loggingResponseWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}

	if _, err := lrw.Write([]byte("12345")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := lrw.Write([]byte("678")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if lrw.bytes != 8 {
		t.Fatalf("bytes=%d, want 8", lrw.bytes)
	}
}
