package auth

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/platform/session"
)

// Authenticate requires a valid "Authorization: Bearer <token>" header and
// stores the session identity on the request context.
func Authenticate(svc Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if header == "" || token == header {
				apperr.Write(w, apperr.Unauthorized("missing bearer token"))
				return
			}
			ident, err := svc.Authenticate(r.Context(), token)
			if err != nil {
				apperr.Write(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithIdentity(r.Context(), ident)))
		})
	}
}

// RequireWallet only lets through sessions signed in as wallet. It must run
// after Authenticate.
func RequireWallet(wallet common.Address) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := session.FromContext(r.Context())
			if !ok {
				apperr.Write(w, apperr.Unauthorized("sign in required"))
				return
			}
			if ident.Wallet != wallet {
				apperr.Write(w, apperr.Forbidden("only the operator wallet may perform writes"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
