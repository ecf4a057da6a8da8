//go:build !ncnn || !cgo

package server

import (
	"bytes"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestNewAPIKeyAuth(t *testing.T) {
	hash, err := HashAPIKey("s3cret")
	if err != nil {
		t.Fatalf("HashAPIKey: %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Fatalf("hash = %q, want a bcrypt hash", hash)
	}

	tests := []struct {
		name string
		key  string
	}{
		{"plain key", "s3cret"},
		{"bcrypt hash", hash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := NewAPIKeyAuth(tt.key, nil)
			if err != nil {
				t.Fatalf("NewAPIKeyAuth: %v", err)
			}
			if err := auth.Verify("s3cret"); err != nil {
				t.Errorf("Verify(correct) = %v", err)
			}
			// second call is served from the verified set
			if err := auth.Verify("s3cret"); err != nil {
				t.Errorf("Verify(correct, cached) = %v", err)
			}
			for _, bad := range []string{"", "wrong", tt.key + "x"} {
				if err := auth.Verify(bad); !errors.Is(err, ErrAPIKeyMismatch) {
					t.Errorf("Verify(%q) = %v, want ErrAPIKeyMismatch", bad, err)
				}
			}
		})
	}

	if _, err := NewAPIKeyAuth("", nil); !errors.Is(err, ErrEmptyAPIKey) {
		t.Errorf("NewAPIKeyAuth(\"\") = %v, want ErrEmptyAPIKey", err)
	}
	if _, err := HashAPIKey(""); !errors.Is(err, ErrEmptyAPIKey) {
		t.Errorf("HashAPIKey(\"\") = %v, want ErrEmptyAPIKey", err)
	}
}

func TestProtectedRoutes(t *testing.T) {
	auth, err := NewAPIKeyAuth("s3cret", nil)
	if err != nil {
		t.Fatal(err)
	}
	srv := New(DefaultConfig(), newRuntime(t), Options{Auth: auth}, zaptest.NewLogger(t))
	body := solidPNG(t, 4, 4, color.RGBA{A: 255})

	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
		want   int
	}{
		{"transfer without key", http.MethodPost, "/api/transfer?style=udnie", nil, http.StatusUnauthorized},
		{"transfer wrong key", http.MethodPost, "/api/transfer?style=udnie", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"transfer bearer", http.MethodPost, "/api/transfer?style=udnie", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusOK},
		{"transfer lower-case scheme", http.MethodPost, "/api/transfer?style=udnie", map[string]string{"Authorization": "bearer s3cret"}, http.StatusOK},
		{"transfer api key header", http.MethodPost, "/api/transfer?style=udnie", map[string]string{APIKeyHeader: "s3cret"}, http.StatusOK},
		{"history without key", http.MethodGet, "/api/history", nil, http.StatusUnauthorized},
		{"styles stay open", http.MethodGet, "/api/styles", nil, http.StatusOK},
		{"health stays open", http.MethodGet, "/health", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewReader(body))
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestPresentedKey_WebsocketQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?key=s3cret", nil)
	if got := presentedKey(req); got != "s3cret" {
		t.Errorf("presentedKey(/ws) = %q", got)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/history?key=s3cret", nil)
	if got := presentedKey(req); got != "" {
		t.Errorf("presentedKey(/api/history) = %q, want query ignored", got)
	}
}
