package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const RoleAdmin = "admin"

// AdminClaims are the claims expected on admin bearer tokens.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminJWT requires an HS256 bearer token signed with secret and carrying role=admin.
// With an empty secret every admin request is rejected.
func AdminJWT(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(key) == 0 {
				WriteError(w, r, http.StatusUnauthorized, "admin access is not configured")
				return
			}

			raw, ok := bearerToken(r)
			if !ok {
				WriteError(w, r, http.StatusUnauthorized, "missing bearer token")
				return
			}

			var claims AdminClaims
			_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
				return key, nil
			})
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "token expired"
				}
				WriteError(w, r, http.StatusUnauthorized, msg)
				return
			}
			if claims.Role != RoleAdmin {
				WriteError(w, r, http.StatusForbidden, "admin role required")
				return
			}

			ctx := context.WithValue(r.Context(), ctxAdminSubject, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminSubjectFromContext returns the sub claim of the authenticated admin token.
func AdminSubjectFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxAdminSubject); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
