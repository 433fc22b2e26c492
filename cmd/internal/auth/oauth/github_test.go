package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// newTestGitHub points the provider at a fake GitHub serving the token
// endpoint and the REST API. publicEmail is what /user reports as "email".
func newTestGitHub(t *testing.T, user githubUser, publicEmail string, emails []githubEmail) *GitHubProvider {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" || r.PostForm.Get("code_verifier") == "" {
			http.Error(w, `{"error":"bad_verification_code"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer"}`))
	})
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gho_test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":         user.ID,
			"login":      user.Login,
			"name":       user.Name,
			"email":      publicEmail,
			"avatar_url": user.AvatarURL,
		})
	})
	mux.HandleFunc("GET /user/emails", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(emails)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p, err := NewGitHubProvider("cid", "secret", "http://localhost/api/login/github/callback")
	require.NoError(t, err)
	p.oauth.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/login/oauth/authorize",
		TokenURL:  srv.URL + "/login/oauth/access_token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.apiBase = srv.URL
	return p
}

func TestGitHubProvider_AuthCodeURL(t *testing.T) {
	t.Parallel()

	p, err := NewGitHubProvider("cid", "secret", "https://gk.example/api/login/github/callback")
	require.NoError(t, err)

	verifier := NewVerifier()
	u, err := url.Parse(p.AuthCodeURL("st4te", verifier))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "st4te", q.Get("state"))
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), q.Get("code_challenge"))
	assert.Equal(t, "https://gk.example/api/login/github/callback", q.Get("redirect_uri"))
}

func TestGitHubProvider_Exchange_Profile(t *testing.T) {
	t.Parallel()

	p := newTestGitHub(t, githubUser{ID: 583231, Login: "octocat", Name: "The Octocat", AvatarURL: "https://a/1"}, "octo@example.com",
		[]githubEmail{{Email: "octo@example.com", Primary: true, Verified: true}})

	got, err := p.Exchange(context.Background(), "good-code", NewVerifier())
	require.NoError(t, err)
	assert.Equal(t, "github", got.Provider)
	assert.Equal(t, "583231", got.ProviderUserID)
	assert.Equal(t, "octo@example.com", got.Email)
	assert.Equal(t, "The Octocat", got.DisplayName)
	assert.Equal(t, "https://a/1", got.AvatarURL)
}

func TestGitHubProvider_Exchange_UsesPrimaryVerifiedEmail(t *testing.T) {
	t.Parallel()

	p := newTestGitHub(t, githubUser{ID: 9, Login: "hidden"}, "", []githubEmail{
		{Email: "old@example.com", Primary: false, Verified: true},
		{Email: "unverified@example.com", Primary: true, Verified: false},
		{Email: "main@example.com", Primary: true, Verified: true},
	})

	got, err := p.Exchange(context.Background(), "good-code", NewVerifier())
	require.NoError(t, err)
	assert.Equal(t, "main@example.com", got.Email)
	assert.Equal(t, "hidden", got.DisplayName)
}

func TestGitHubProvider_Exchange_IgnoresUnverifiedPublicEmail(t *testing.T) {
	t.Parallel()

	p := newTestGitHub(t, githubUser{ID: 7, Login: "claimer"}, "victim@example.com", []githubEmail{
		{Email: "victim@example.com", Primary: true, Verified: false},
	})

	got, err := p.Exchange(context.Background(), "good-code", NewVerifier())
	require.NoError(t, err)
	assert.Empty(t, got.Email)
	assert.Equal(t, "7", got.ProviderUserID)
}

func TestGitHubProvider_Exchange_BadCode(t *testing.T) {
	t.Parallel()

	p := newTestGitHub(t, githubUser{ID: 1}, "", nil)

	_, err := p.Exchange(context.Background(), "bad-code", NewVerifier())
	assert.ErrorIs(t, err, ErrExchange)
}

func TestNewGitHubProvider_RequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := NewGitHubProvider("", "secret", "http://x/cb")
	assert.ErrorIs(t, err, ErrConfig)
}
