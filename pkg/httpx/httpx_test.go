package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HatiCode/tempalign/pkg/align"
	tatls "github.com/HatiCode/tempalign/pkg/tls"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad mode", align.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: no value column", align.ErrSchema), http.StatusUnprocessableEntity},
		{fmt.Errorf("resolve: %w", fmt.Errorf("%w: nested", align.ErrSchema)), http.StatusUnprocessableEntity},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusForError(tt.err); got != tt.want {
			t.Errorf("StatusForError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteAlignError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAlignError(rec, discardLogger(), fmt.Errorf("%w: unknown stream %q", align.ErrInvalidInput, "X"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if msg := decodeError(t, rec); !strings.Contains(msg, "unknown stream") {
		t.Errorf("message = %q, want the alignment error", msg)
	}

	rec = httptest.NewRecorder()
	WriteAlignError(rec, discardLogger(), errors.New("secret detail"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "internal server error" {
		t.Errorf("message = %q, want generic message", msg)
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := WriteJSON(rec, http.StatusCreated, map[string]int{"rows": 3}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"rows":3}` {
		t.Errorf("body = %s, want {\"rows\":3}", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Mode string `json:"mode"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"mode":"grid"}`, false},
		{"unknown field", `{"mode":"grid","extra":1}`, true},
		{"trailing data", `{"mode":"grid"}{"mode":"join"}`, true},
		{"too large", `{"mode":"` + strings.Repeat("g", 100) + `"}`, true},
		{"not json", `mode=grid`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/align", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSON(req, 64, &p)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHealthHandlerWithCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("healthy = %d %q, want 200 OK", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	HealthHandlerWithCheck(func() error { return errors.New("store unreachable") }).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "store unreachable" {
		t.Errorf("message = %q, want check error", msg)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mark("outer"), mark("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got := strings.Join(order, ","); got != "outer,inner,handler" {
		t.Errorf("order = %s, want outer,inner,handler", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), LoggingMiddleware(discardLogger()), RecoveryMiddleware(discardLogger()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/align", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestResponseWriterKeepsFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusTeapot)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want 404", rw.statusCode)
	}
}

func TestServerServeAndStop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := NewServer(ln.Addr().String(), HealthHandler(), discardLogger())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	client, err := NewClient(tatls.Config{}, 2*time.Second)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = client.Get("http://" + ln.Addr().String() + "/healthz")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Stop(time.Second); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve() returned %v after Stop, want nil", err)
	}
}

func TestNewClient_InvalidTLS(t *testing.T) {
	_, err := NewClient(tatls.Config{Enabled: true, CertFile: "/nonexistent.crt", KeyFile: "/nonexistent.key", CAFile: "/nonexistent.ca"}, time.Second)
	if err == nil {
		t.Error("NewClient() error = nil, want TLS load error")
	}
}
