package oauth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testGoogleClientID = "gid.apps.googleusercontent.com"

// newTestGoogle builds a provider whose token endpoint returns idToken and
// whose verifier trusts only key.
func newTestGoogle(t *testing.T, key *rsa.PrivateKey, idToken string) *GoogleProvider {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" || r.PostForm.Get("code_verifier") == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		body := map[string]any{"access_token": "ya29.test", "token_type": "Bearer", "expires_in": 3600}
		if idToken != "" {
			body["id_token"] = idToken
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	keys := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     testGoogleClientID,
			ClientSecret: "secret",
			RedirectURL:  "http://localhost/api/login/google/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:   srv.URL + "/auth",
				TokenURL:  srv.URL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: oidc.NewVerifier(googleIssuer, keys, &oidc.Config{ClientID: testGoogleClientID}),
	}
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, claims map[string]any) string {
	t.Helper()

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, nil)
	require.NoError(t, err)

	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	jws, err := signer.Sign(payload)
	require.NoError(t, err)

	raw, err := jws.CompactSerialize()
	require.NoError(t, err)
	return raw
}

func googleTestClaims(sub string) map[string]any {
	now := time.Now()
	return map[string]any{
		"iss":            googleIssuer,
		"aud":            testGoogleClientID,
		"sub":            sub,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
		"email":          "dev@example.com",
		"email_verified": true,
		"name":           "Dev",
		"picture":        "https://lh3.example/p.png",
	}
}

func mustRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestGoogleProvider_Exchange(t *testing.T) {
	t.Parallel()

	key := mustRSAKey(t)
	p := newTestGoogle(t, key, signIDToken(t, key, googleTestClaims("1089")))

	got, err := p.Exchange(context.Background(), "good-code", NewVerifier())
	require.NoError(t, err)
	assert.Equal(t, "google", got.Provider)
	assert.Equal(t, "1089", got.ProviderUserID)
	assert.Equal(t, "dev@example.com", got.Email)
	assert.Equal(t, "Dev", got.DisplayName)
	assert.Equal(t, "https://lh3.example/p.png", got.AvatarURL)
}

func TestGoogleProvider_Exchange_MissingIDToken(t *testing.T) {
	t.Parallel()

	p := newTestGoogle(t, mustRSAKey(t), "")

	_, err := p.Exchange(context.Background(), "good-code", NewVerifier())
	assert.ErrorIs(t, err, ErrExchange)
}

func TestGoogleProvider_Exchange_RejectsForeignSignature(t *testing.T) {
	t.Parallel()

	trusted := mustRSAKey(t)
	other := mustRSAKey(t)
	p := newTestGoogle(t, trusted, signIDToken(t, other, googleTestClaims("1089")))

	_, err := p.Exchange(context.Background(), "good-code", NewVerifier())
	assert.ErrorIs(t, err, ErrExchange)
}

func TestGoogleProvider_Exchange_RejectsWrongAudience(t *testing.T) {
	t.Parallel()

	key := mustRSAKey(t)
	claims := googleTestClaims("1089")
	claims["aud"] = "someone-else"
	p := newTestGoogle(t, key, signIDToken(t, key, claims))

	_, err := p.Exchange(context.Background(), "good-code", NewVerifier())
	assert.ErrorIs(t, err, ErrExchange)
}

func TestGoogleProvider_Exchange_BadCode(t *testing.T) {
	t.Parallel()

	p := newTestGoogle(t, mustRSAKey(t), "")

	_, err := p.Exchange(context.Background(), "bad-code", NewVerifier())
	assert.ErrorIs(t, err, ErrExchange)
}
