package oauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeep/cmd/identity"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string { return s.name }
func (s stubProvider) AuthCodeURL(state, _ string) string { return "https://" + s.name + "/auth?state=" + state }
func (s stubProvider) Exchange(context.Context, string, string) (identity.OAuthIdentity, error) {
	return identity.OAuthIdentity{Provider: s.name, ProviderUserID: "1"}, nil
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry(stubProvider{"google"}, nil, stubProvider{"github"})
	assert.Equal(t, []string{"github", "google"}, r.Names())

	p, err := r.Get("GitHub")
	require.NoError(t, err)
	assert.Equal(t, "github", p.Name())

	_, err = r.Get("gitlab")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestCheckState(t *testing.T) {
	t.Parallel()

	s, err := NewState()
	require.NoError(t, err)
	assert.Len(t, s, 52)

	assert.NoError(t, CheckState(s, s))
	assert.ErrorIs(t, CheckState(s, s+"x"), ErrStateMismatch)
	assert.ErrorIs(t, CheckState("", ""), ErrStateMismatch)
	assert.ErrorIs(t, CheckState(s, ""), ErrStateMismatch)
}

func TestGoogleClaims_Identity(t *testing.T) {
	t.Parallel()

	got, err := googleClaims{Subject: "1089", Email: "a@b.c", EmailVerified: true, Name: "A", Picture: "p"}.identity()
	require.NoError(t, err)
	assert.Equal(t, identity.OAuthIdentity{
		Provider: "google", ProviderUserID: "1089", Email: "a@b.c", DisplayName: "A", AvatarURL: "p",
	}, got)

	got, err = googleClaims{Subject: "1089", Email: "a@b.c"}.identity()
	require.NoError(t, err)
	assert.Empty(t, got.Email)

	_, err = googleClaims{}.identity()
	assert.ErrorIs(t, err, ErrProfile)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("GATEKEEP_HOST_NAME", "https://gk.example/")
	t.Setenv("GATEKEEP_GITHUB_CLIENT_ID", "id")
	t.Setenv("GATEKEEP_GITHUB_CLIENT_SECRET", "secret")
	t.Setenv("GATEKEEP_GOOGLE_CLIENT_ID", "gid")
	t.Setenv("GATEKEEP_GOOGLE_CLIENT_SECRET", "")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://gk.example/api/login/github/callback", cfg.CallbackURL("github"))
	assert.True(t, cfg.GitHubEnabled())
	assert.False(t, cfg.GoogleEnabled())

	r, err := NewRegistryFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"github"}, r.Names())
}

func TestLoadConfigFromEnv_BadHost(t *testing.T) {
	t.Setenv("GATEKEEP_HOST_NAME", "gk.example")

	_, err := LoadConfigFromEnv()
	assert.ErrorIs(t, err, ErrConfig)
}
