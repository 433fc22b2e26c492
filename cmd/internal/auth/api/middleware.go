package authapi

import (
	"context"
	"net/http"

	"gatekeep/cmd/internal/auth/session"
)

type resultKey struct{}

// ResultFromContext returns the validated session stored by RequireSession.
func ResultFromContext(ctx context.Context) (session.Result, bool) {
	res, ok := ctx.Value(resultKey{}).(session.Result)
	return res, ok && res.Valid()
}

func withResult(ctx context.Context, res session.Result) context.Context {
	return context.WithValue(ctx, resultKey{}, res)
}

// RequireSession validates the request's session and rejects it with 401
// when there is none. A renewed session gets its cookie re-issued with the
// new expiry; a stale cookie is cleared.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := h.requestContext(r)
		tok, presented := rc.SessionToken()

		res, err := h.sessions.ValidateRequest(r.Context(), h.now(), rc)
		if err != nil {
			h.log.Error("auth.session.validate.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		if !res.Valid() {
			if presented && cookieValue(r, h.sessCfg.CookieName) != "" {
				h.clearSessionCookie(w)
			}
			writeError(w, http.StatusUnauthorized, "unauthorized", "no valid session")
			return
		}
		if res.Renewed && cookieValue(r, h.sessCfg.CookieName) == tok {
			h.setSessionCookie(w, tok, res.Session.ExpiresAt)
		}

		next.ServeHTTP(w, r.WithContext(withResult(r.Context(), res)))
	})
}
