package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	defaultTokenEndpoint = "https://oauth2.googleapis.com/token"
	visionScope          = "https://www.googleapis.com/auth/cloud-vision"

	// tokenRefreshSkew re-mints a cached token this long before its
	// stated expiry.
	tokenRefreshSkew = 60 * time.Second
)

// TokenSource produces short-lived bearer tokens for the cloud vision
// service.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ServiceAccount is the subset of a Google service-account credential
// document needed for the JWT-bearer exchange.
type ServiceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

func LoadServiceAccount(path string) (*ServiceAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading service account file: %w", err)
	}

	var account ServiceAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("parsing service account file: %w", err)
	}

	if account.ClientEmail == "" || account.PrivateKey == "" {
		return nil, fmt.Errorf("service account file missing client_email or private_key")
	}
	if account.TokenURI == "" {
		account.TokenURI = defaultTokenEndpoint
	}
	return &account, nil
}

// ServiceAccountTokenSource mints access tokens by signing an RS256
// assertion and exchanging it at the OAuth2 token endpoint. Tokens are
// cached until shortly before expiry.
type ServiceAccountTokenSource struct {
	account    *ServiceAccount
	httpClient *http.Client
	now        func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewServiceAccountTokenSource(account *ServiceAccount) *ServiceAccountTokenSource {
	return &ServiceAccountTokenSource{
		account: account,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

func (s *ServiceAccountTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Add(tokenRefreshSkew).Before(s.expires) {
		return s.token, nil
	}

	token, expiresIn, err := s.mint(ctx)
	if err != nil {
		return "", err
	}

	s.token = token
	s.expires = s.now().Add(time.Duration(expiresIn) * time.Second)
	return token, nil
}

func (s *ServiceAccountTokenSource) mint(ctx context.Context) (string, int64, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(s.account.PrivateKey))
	if err != nil {
		return "", 0, fmt.Errorf("parsing private key: %w", err)
	}

	now := s.now()
	claims := jwt.MapClaims{
		"iss":   s.account.ClientEmail,
		"scope": visionScope,
		"aud":   s.account.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", 0, fmt.Errorf("signing assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, "POST", s.account.TokenURI,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("executing token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token request failed: %s", strings.TrimSpace(string(body)))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", 0, fmt.Errorf("unmarshaling token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", 0, fmt.Errorf("no access token in response")
	}

	if tokenResp.ExpiresIn <= 0 {
		tokenResp.ExpiresIn = 3600
	}
	return tokenResp.AccessToken, tokenResp.ExpiresIn, nil
}
