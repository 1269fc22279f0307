package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/brewpos/brewpos/internal/domain/auth"
)

// APIKeyHeader is the request header carrying the client's API key.
const APIKeyHeader = "Api-Key"

// APIKeyAuth returns a middleware that authenticates requests via
// HMAC-SHA256 hashed API keys. The provided key is hashed with the pepper,
// looked up in the repository, and compared in constant time.
func APIKeyAuth(apikeys auth.Repository, pepper []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				writeErrorBody(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}

			mac := hmac.New(sha256.New, pepper)
			mac.Write([]byte(key))
			hash := mac.Sum(nil)

			info, err := apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
			if err != nil {
				writeErrorBody(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}

			// Constant-time comparison guards against timing side-channels even
			// though the lookup already succeeded — the stored hash could differ
			// from what we computed if the repository returns a stale/wrong row.
			stored, err := hex.DecodeString(info.KeyHash)
			if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
				writeErrorBody(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
