package server

import (
	"crypto/sha256"
	"errors"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// APIKeyHeader is accepted as an alternative to "Authorization: Bearer".
const APIKeyHeader = "X-API-Key"

var (
	// ErrEmptyAPIKey is returned when constructing an APIKeyAuth without a key.
	ErrEmptyAPIKey = errors.New("api key cannot be empty")

	// ErrAPIKeyMismatch is returned when a presented key does not verify.
	ErrAPIKeyMismatch = errors.New("api key does not match")
)

// APIKeyAuth guards routes with one shared key. Only the bcrypt hash of the
// key is held. A key that verified once is remembered by its SHA-256 so
// bcrypt runs once per distinct key rather than once per request.
type APIKeyAuth struct {
	hash   []byte
	logger *zap.Logger

	mu       sync.RWMutex
	verified map[[sha256.Size]byte]struct{}
}

// NewAPIKeyAuth accepts either the key itself or a bcrypt hash of it
// (as printed by HashAPIKey).
func NewAPIKeyAuth(key string, logger *zap.Logger) (*APIKeyAuth, error) {
	if key == "" {
		return nil, ErrEmptyAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hash := []byte(key)
	if _, err := bcrypt.Cost(hash); err != nil {
		if hash, err = bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost); err != nil {
			return nil, err
		}
	}
	return &APIKeyAuth{
		hash:     hash,
		logger:   logger,
		verified: make(map[[sha256.Size]byte]struct{}),
	}, nil
}

// HashAPIKey returns the bcrypt hash to put in STYLE_API_KEY instead of the
// key itself.
func HashAPIKey(key string) (string, error) {
	if key == "" {
		return "", ErrEmptyAPIKey
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify returns nil when key matches.
func (a *APIKeyAuth) Verify(key string) error {
	if key == "" {
		return ErrAPIKeyMismatch
	}
	sum := sha256.Sum256([]byte(key))

	a.mu.RLock()
	_, ok := a.verified[sum]
	a.mu.RUnlock()
	if ok {
		return nil
	}

	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(key)); err != nil {
		return ErrAPIKeyMismatch
	}
	a.mu.Lock()
	a.verified[sum] = struct{}{}
	a.mu.Unlock()
	return nil
}

// protect wraps h so it answers 401 unless the request carries the key.
// Without an APIKeyAuth every route is open.
func (s *Server) protect(h http.HandlerFunc) http.HandlerFunc {
	auth := s.opts.Auth
	if auth == nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if err := auth.Verify(presentedKey(r)); err != nil {
			auth.logger.Debug("rejected request",
				zap.String("path", r.URL.Path),
				zap.String("ip", clientIP(r)),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="styletransfer"`)
			s.writeError(w, r, http.StatusUnauthorized, "missing or invalid API key")
			return
		}
		h(w, r)
	}
}

func presentedKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	// Browsers cannot set headers on a websocket upgrade.
	if r.URL.Path == "/ws" {
		return r.URL.Query().Get("key")
	}
	return ""
}
