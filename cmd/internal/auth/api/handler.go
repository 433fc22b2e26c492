package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"gatekeep/cmd/identity"
	"gatekeep/cmd/internal/auth/oauth"
	"gatekeep/cmd/internal/auth/session"
)

// Handler wires HTTP auth endpoints to the OAuth providers, the identity
// store and the session manager.
type Handler struct {
	log *slog.Logger
	cfg Config

	sessions  *session.Manager
	sessCfg   session.Config
	users     identity.Store
	providers *oauth.Registry

	now func() time.Time
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithClock overrides time.Now. Tests use it to step through session lifetimes.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, sessions *session.Manager, users identity.Store, providers *oauth.Registry, opts ...HandlerOption) (*Handler, error) {
	if sessions == nil || users == nil || providers == nil {
		return nil, errors.New("authapi: sessions, users and providers are required")
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:       log,
		cfg:       cfg,
		sessions:  sessions,
		sessCfg:   sessions.Config(),
		users:     users,
		providers: providers,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register wires auth routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("GET /api/login/{provider}", h.handleLogin)
	mux.HandleFunc("GET /api/login/{provider}/callback", h.handleCallback)
	mux.Handle("POST /api/logout", h.RequireSession(http.HandlerFunc(h.handleLogout)))
	mux.Handle("POST /api/logout_all", h.RequireSession(http.HandlerFunc(h.handleLogoutAll)))
	mux.Handle("GET /api/me", h.RequireSession(http.HandlerFunc(h.handleMe)))
	mux.Handle("GET /api/sessions", h.RequireSession(http.HandlerFunc(h.handleListSessions)))
	mux.Handle("DELETE /api/sessions/{id}", h.RequireSession(http.HandlerFunc(h.handleRevokeSession)))
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	p, err := h.providers.Get(r.PathValue("provider"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_provider", "unknown login provider")
		return
	}

	state, err := oauth.NewState()
	if err != nil {
		h.log.Error("auth.login.state.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	verifier := oauth.NewVerifier()

	h.setFlowCookie(w, stateCookieName, state)
	h.setFlowCookie(w, verifierCookieName, verifier)
	http.Redirect(w, r, p.AuthCodeURL(state, verifier), http.StatusFound)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	p, err := h.providers.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_provider", "unknown login provider")
		return
	}

	q := r.URL.Query()
	if err := oauth.CheckState(cookieValue(r, stateCookieName), q.Get("state")); err != nil {
		h.clearFlowCookies(w)
		writeError(w, http.StatusBadRequest, "invalid_state", "login state mismatch")
		return
	}
	verifier := cookieValue(r, verifierCookieName)
	h.clearFlowCookies(w)

	if e := q.Get("error"); e != "" {
		h.log.Warn("auth.callback.provider_error", "provider", name, "error", e, "desc", q.Get("error_description"))
		writeError(w, http.StatusUnauthorized, "login_denied", "login was not completed")
		return
	}
	code := q.Get("code")
	if code == "" || verifier == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing code or verifier")
		return
	}

	ctx := r.Context()
	ident, err := p.Exchange(ctx, code, verifier)
	if err != nil {
		h.log.Warn("auth.callback.exchange.fail", "provider", name, "err", err)
		writeError(w, http.StatusUnauthorized, "authentication_failed", "authentication failed")
		return
	}

	now := h.now()
	user, err := h.users.UpsertOAuthUser(ctx, now, ident)
	if err != nil {
		if identity.IsConflict(err) {
			writeError(w, http.StatusConflict, "conflict", "account is being created, retry")
			return
		}
		h.log.Error("auth.callback.upsert_user.fail", "provider", name, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	tok, err := h.sessions.GenerateSessionToken()
	if err != nil {
		h.log.Error("auth.callback.token.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	s, err := h.sessions.CreateSession(ctx, now, tok, user.ID)
	if err != nil {
		h.log.Error("auth.callback.create_session.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("auth.login.success", "provider", name, "user_id", user.ID)
	h.setSessionCookie(w, tok, s.ExpiresAt)
	http.Redirect(w, r, h.cfg.PostLoginRedirect, http.StatusFound)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	res, _ := ResultFromContext(r.Context())

	if err := h.sessions.InvalidateSession(r.Context(), res.Session.ID); err != nil {
		h.log.Error("auth.logout.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	res, _ := ResultFromContext(r.Context())

	if err := h.sessions.InvalidateUserSessions(r.Context(), res.User.ID); err != nil {
		h.log.Error("auth.logout_all.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	res, _ := ResultFromContext(r.Context())

	writeJSON(w, http.StatusOK, meResponse{
		User:    toUserResponse(*res.User),
		Session: toSessionResponse(*res.Session, res.Session.ID),
	})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	res, _ := ResultFromContext(r.Context())

	list, err := h.sessions.ListUserSessions(r.Context(), h.now(), res.User.ID)
	if err != nil {
		h.log.Error("auth.sessions.list.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := sessionsResponse{Sessions: make([]sessionResponse, 0, len(list))}
	for _, s := range list {
		out.Sessions = append(out.Sessions, toSessionResponse(s, res.Session.ID))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRevokeSession ends one of the caller's own sessions, e.g. a lost device.
func (h *Handler) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	res, _ := ResultFromContext(r.Context())
	ctx := r.Context()
	id := r.PathValue("id")

	owned, err := h.ownsSession(ctx, res.User.ID, id)
	if err != nil {
		h.log.Error("auth.sessions.revoke.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if !owned {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}

	if err := h.sessions.InvalidateSession(ctx, id); err != nil {
		h.log.Error("auth.sessions.revoke.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if id == res.Session.ID {
		h.clearSessionCookie(w)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ownsSession(ctx context.Context, userID, sessionID string) (bool, error) {
	list, err := h.sessions.ListUserSessions(ctx, h.now(), userID)
	if err != nil {
		return false, err
	}
	for _, s := range list {
		if s.ID == sessionID {
			return true, nil
		}
	}
	return false, nil
}
