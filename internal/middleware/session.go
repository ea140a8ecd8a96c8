package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const HeaderSessionID = "X-Session-Id"

const sessionMaxAge = 30 * 24 * 60 * 60

// Session resolves the shopper's session id from the cookie or the X-Session-Id header.
// A fresh id is issued as a cookie when neither is present.
func Session(cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := strings.TrimSpace(r.Header.Get(HeaderSessionID))
			if sid == "" {
				if c, err := r.Cookie(cookieName); err == nil {
					sid = strings.TrimSpace(c.Value)
				}
			}
			if sid == "" {
				sid = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    sid,
					Path:     "/",
					MaxAge:   sessionMaxAge,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(HeaderSessionID, sid)

			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sid)))
		})
	}
}

func WithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, ctxSessionID, sid)
}

func SessionIDFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxSessionID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
