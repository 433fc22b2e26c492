package authapi

import (
	"net/http"
	"strings"
	"time"
)

const (
	stateCookieName    = "gk_oauth_state"
	verifierCookieName = "gk_oauth_verifier"
	flowCookiePath     = "/api/login/"
)

// cookieRequestContext reads the session token from the request.
// It implements session.RequestContext.
type cookieRequestContext struct {
	r           *http.Request
	name        string
	allowBearer bool
}

func (c cookieRequestContext) SessionToken() (string, bool) {
	if ck, err := c.r.Cookie(c.name); err == nil {
		if v := strings.TrimSpace(ck.Value); v != "" {
			return v, true
		}
	}
	if c.allowBearer {
		if v := bearerToken(c.r); v != "" {
			return v, true
		}
	}
	return "", false
}

func (h *Handler) requestContext(r *http.Request) cookieRequestContext {
	return cookieRequestContext{r: r, name: h.sessCfg.CookieName, allowBearer: h.cfg.AllowBearer}
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, value string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessCfg.CookieName,
		Value:    value,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.sessCfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	h.expireCookie(w, h.sessCfg.CookieName, h.cfg.CookiePath)
}

func (h *Handler) setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     flowCookiePath,
		Domain:   h.cfg.CookieDomain,
		MaxAge:   int(h.cfg.FlowTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.sessCfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearFlowCookies(w http.ResponseWriter) {
	h.expireCookie(w, stateCookieName, flowCookiePath)
	h.expireCookie(w, verifierCookieName, flowCookiePath)
}

func (h *Handler) expireCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   h.cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.sessCfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
