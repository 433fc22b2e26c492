package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"gatekeep/cmd/identity"
)

const (
	githubName    = "github"
	githubAPIBase = "https://api.github.com"

	// maxProfileBytes caps provider profile responses.
	maxProfileBytes = 1 << 20
)

// GitHubProvider signs users in with a GitHub OAuth app.
type GitHubProvider struct {
	oauth   *oauth2.Config
	apiBase string
}

// NewGitHubProvider builds the GitHub provider from client credentials.
func NewGitHubProvider(clientID, clientSecret, redirectURL string) (*GitHubProvider, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, fmt.Errorf("%w: github client id, secret and redirect url are required", ErrConfig)
	}
	return &GitHubProvider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		apiBase: githubAPIBase,
	}, nil
}

func (p *GitHubProvider) Name() string { return githubName }

func (p *GitHubProvider) AuthCodeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Exchange trades code for an access token and reads /user. The email is always
// the primary verified address from /user/emails; the public profile email is
// ignored because GitHub does not report whether it is verified.
func (p *GitHubProvider) Exchange(ctx context.Context, code, verifier string) (identity.OAuthIdentity, error) {
	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return identity.OAuthIdentity{}, fmt.Errorf("%w: github: %v", ErrExchange, err)
	}
	client := p.oauth.Client(ctx, tok)

	var u githubUser
	if err := getJSON(ctx, client, p.apiBase+"/user", &u); err != nil {
		return identity.OAuthIdentity{}, err
	}
	if u.ID == 0 {
		return identity.OAuthIdentity{}, fmt.Errorf("%w: github: missing user id", ErrProfile)
	}

	var emails []githubEmail
	if err := getJSON(ctx, client, p.apiBase+"/user/emails", &emails); err != nil {
		return identity.OAuthIdentity{}, err
	}
	email := primaryVerifiedEmail(emails)

	name := strings.TrimSpace(u.Name)
	if name == "" {
		name = u.Login
	}

	return identity.OAuthIdentity{
		Provider:       githubName,
		ProviderUserID: strconv.FormatInt(u.ID, 10),
		Email:          email,
		DisplayName:    name,
		AvatarURL:      u.AvatarURL,
	}, nil
}

func primaryVerifiedEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return strings.TrimSpace(e.Email)
		}
	}
	return ""
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProfile, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProfileBytes))
		return fmt.Errorf("%w: GET %s: status %d", ErrProfile, url, resp.StatusCode)
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: decode %s: %v", ErrProfile, url, err)
	}
	return nil
}
