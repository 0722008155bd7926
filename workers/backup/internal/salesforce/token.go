// Package salesforce talks to the Salesforce REST and Bulk API 2.0
// endpoints on behalf of one org.
package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/balu-bunny/lambdaTest/shared/observability/types"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

// Credential is a bearer token and the instance it was issued for.
type Credential struct {
	AccessToken string
	InstanceURL string
	IssuedAt    time.Time
}

// TokenSource obtains a credential. Implementations fail with
// *domain.AuthError when no valid credential is available.
type TokenSource interface {
	Token(ctx context.Context) (Credential, error)
}

// StaticTokenSource serves a pre-issued access token.
type StaticTokenSource struct {
	AccessToken string
	InstanceURL string
}

func (s StaticTokenSource) Token(ctx context.Context) (Credential, error) {
	if strings.TrimSpace(s.AccessToken) == "" {
		return Credential{}, &domain.AuthError{Reason: "no access token configured"}
	}
	return Credential{AccessToken: s.AccessToken, InstanceURL: s.InstanceURL}, nil
}

// OAuthTokenSource exchanges a refresh token at the OAuth token endpoint.
type OAuthTokenSource struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
	RetryDelay   time.Duration
	HTTPClient   *http.Client
	Logger       types.Logger
}

// Token posts a refresh_token grant. A failed attempt is retried once after
// RetryDelay.
func (s *OAuthTokenSource) Token(ctx context.Context) (Credential, error) {
	if s.TokenURL == "" || s.RefreshToken == "" {
		return Credential{}, &domain.AuthError{Reason: "oauth token url and refresh token are required"}
	}

	res, err := s.exchange(ctx)
	if err == nil && res.ok {
		return res.cred, nil
	}

	reason := res.reason
	if err != nil {
		reason = err.Error()
	}
	if s.Logger != nil {
		s.Logger.Warn(ctx, "Token refresh failed, retrying once", types.Fields{"reason": reason})
	}

	select {
	case <-time.After(s.RetryDelay):
	case <-ctx.Done():
		return Credential{}, &domain.AuthError{Reason: "token refresh cancelled", Err: ctx.Err()}
	}

	res, err = s.exchange(ctx)
	if err != nil {
		return Credential{}, &domain.AuthError{Reason: "token refresh failed", Err: err}
	}
	if !res.ok {
		return Credential{}, &domain.AuthError{Reason: res.reason}
	}
	return res.cred, nil
}

func (s *OAuthTokenSource) exchange(ctx context.Context) (tokenResult, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {s.RefreshToken},
	}
	if s.ClientID != "" {
		form.Set("client_id", s.ClientID)
	}
	if s.ClientSecret != "" {
		form.Set("client_secret", s.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResult{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return tokenResult{}, err
	}
	defer resp.Body.Close()

	return decodeTokenResponse(resp.StatusCode, io.LimitReader(resp.Body, 64<<10)), nil
}

// tokenResult is either a credential or the reason there is none.
type tokenResult struct {
	ok     bool
	cred   Credential
	reason string
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	InstanceURL      string `json:"instance_url"`
	IssuedAt         string `json:"issued_at"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// decodeTokenResponse reads an OAuth token endpoint answer.
func decodeTokenResponse(status int, body io.Reader) tokenResult {
	var tr tokenResponse
	if err := json.NewDecoder(body).Decode(&tr); err != nil {
		return tokenResult{reason: fmt.Sprintf("token endpoint returned HTTP %d with an unreadable body", status)}
	}

	if status != http.StatusOK || tr.AccessToken == "" {
		reason := fmt.Sprintf("token endpoint returned HTTP %d", status)
		switch {
		case tr.Error != "" && tr.ErrorDescription != "":
			reason += ": " + tr.Error + ": " + tr.ErrorDescription
		case tr.Error != "":
			reason += ": " + tr.Error
		case status == http.StatusOK:
			reason += " without an access token"
		}
		return tokenResult{reason: reason}
	}

	cred := Credential{AccessToken: tr.AccessToken, InstanceURL: tr.InstanceURL}
	// issued_at is epoch milliseconds as a string
	if ms, err := strconv.ParseInt(tr.IssuedAt, 10, 64); err == nil && ms > 0 {
		cred.IssuedAt = time.UnixMilli(ms).UTC()
	}
	return tokenResult{ok: true, cred: cred}
}
