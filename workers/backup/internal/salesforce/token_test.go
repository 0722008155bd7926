package salesforce

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/balu-bunny/lambdaTest/shared/config"
	obsmocks "github.com/balu-bunny/lambdaTest/shared/observability/mocks"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

func TestStaticTokenSource(t *testing.T) {
	cred, err := StaticTokenSource{AccessToken: "00Dxx"}.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "00Dxx", cred.AccessToken)

	_, err = StaticTokenSource{}.Token(context.Background())
	var aerr *domain.AuthError
	assert.ErrorAs(t, err, &aerr)
}

func TestDecodeTokenResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		ok     bool
		reason string
	}{
		{name: "issued", status: 200, body: `{"access_token":"abc","instance_url":"https://acme.my.salesforce.com","issued_at":"1700000000000"}`, ok: true},
		{name: "oauth error", status: 400, body: `{"error":"invalid_grant","error_description":"expired access/refresh token"}`, reason: "invalid_grant: expired access/refresh token"},
		{name: "ok without token", status: 200, body: `{"instance_url":"https://x"}`, reason: "without an access token"},
		{name: "html", status: 502, body: `<html>bad gateway</html>`, reason: "unreadable body"},
		{name: "nested body is not unwrapped", status: 200, body: `{"body":"{\"access_token\":\"abc\"}"}`, reason: "without an access token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := decodeTokenResponse(tt.status, strings.NewReader(tt.body))
			assert.Equal(t, tt.ok, res.ok)
			if tt.ok {
				assert.Equal(t, "abc", res.cred.AccessToken)
				assert.Equal(t, "https://acme.my.salesforce.com", res.cred.InstanceURL)
				assert.Equal(t, int64(1700000000000), res.cred.IssuedAt.UnixMilli())
				return
			}
			assert.Contains(t, res.reason, tt.reason)
		})
	}
}

func TestOAuthTokenSource(t *testing.T) {
	t.Run("retries once then succeeds", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "rt", r.PostForm.Get("refresh_token"))
			assert.Equal(t, "cid", r.PostForm.Get("client_id"))

			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = io.WriteString(w, `{"error":"unavailable"}`)
				return
			}
			_, _ = io.WriteString(w, `{"access_token":"fresh"}`)
		}))
		defer srv.Close()

		src := &OAuthTokenSource{TokenURL: srv.URL, ClientID: "cid", RefreshToken: "rt", RetryDelay: time.Millisecond, HTTPClient: srv.Client(), Logger: obsmocks.NewMockLogger()}
		cred, err := src.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "fresh", cred.AccessToken)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("gives up after the retry", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
		}))
		defer srv.Close()

		src := &OAuthTokenSource{TokenURL: srv.URL, RefreshToken: "rt", RetryDelay: time.Millisecond, HTTPClient: srv.Client()}
		_, err := src.Token(context.Background())

		var aerr *domain.AuthError
		require.ErrorAs(t, err, &aerr)
		assert.Contains(t, aerr.Error(), "invalid_grant")
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("missing settings", func(t *testing.T) {
		_, err := (&OAuthTokenSource{}).Token(context.Background())
		var aerr *domain.AuthError
		assert.ErrorAs(t, err, &aerr)
	})
}

type mockSecrets struct {
	mock.Mock
}

func (m *mockSecrets) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	args := m.Called(ctx, aws.ToString(in.SecretId))
	out, _ := args.Get(0).(*secretsmanager.GetSecretValueOutput)
	return out, args.Error(1)
}

func TestSecretLoader(t *testing.T) {
	api := new(mockSecrets)
	api.On("GetSecretValue", mock.Anything, "sfbackup/acme").Return(&secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(`{"access_token":"from-secret","instance_url":"https://acme.my.salesforce.com"}`),
	}, nil)
	api.On("GetSecretValue", mock.Anything, "sfbackup/broken").Return(&secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(`not json`),
	}, nil)
	api.On("GetSecretValue", mock.Anything, "sfbackup/default").Return(nil, assert.AnError)

	loader := NewSecretLoader(api)

	secret, err := loader.Load(context.Background(), SecretName("sfbackup/{orgId}", "acme"))
	require.NoError(t, err)
	assert.Equal(t, "from-secret", secret.AccessToken)

	var aerr *domain.AuthError
	_, err = loader.Load(context.Background(), "sfbackup/broken")
	assert.ErrorAs(t, err, &aerr)

	_, err = loader.Load(context.Background(), SecretName("sfbackup/{orgId}", ""))
	assert.ErrorAs(t, err, &aerr)
}

type staticOrgs map[string]string

func (o staticOrgs) InstanceURL(orgID string) string { return o[orgID] }

func TestConnector_Connect(t *testing.T) {
	base := config.DefaultSalesforceConfig()
	base.InstanceURL = "https://default.my.salesforce.com"
	base.AccessToken = "tok"
	httpCfg := config.DefaultHTTPConfig()

	t.Run("catalog override", func(t *testing.T) {
		c := NewConnector(base, httpCfg, nil, staticOrgs{"acme": "https://acme.my.salesforce.com"}, obsmocks.NewMockLogger(), obsmocks.NewMockMetrics())
		client, err := c.Connect(context.Background(), domain.RequestDetails(`{"orgId":"acme"}`))
		require.NoError(t, err)
		assert.Equal(t, "https://acme.my.salesforce.com", client.InstanceURL())
	})

	t.Run("org id that is a trusted host", func(t *testing.T) {
		c := NewConnector(base, httpCfg, nil, nil, obsmocks.NewMockLogger(), obsmocks.NewMockMetrics())
		client, err := c.Connect(context.Background(), domain.RequestDetails(`{"orgId":"qms.my.salesforce.com"}`))
		require.NoError(t, err)
		assert.Equal(t, "https://qms.my.salesforce.com", client.InstanceURL())
	})

	t.Run("untrusted org host falls back to the configured instance", func(t *testing.T) {
		c := NewConnector(base, httpCfg, nil, nil, obsmocks.NewMockLogger(), obsmocks.NewMockMetrics())
		client, err := c.Connect(context.Background(), domain.RequestDetails(`{"orgId":"attacker.example.com"}`))
		require.NoError(t, err)
		assert.Equal(t, "https://default.my.salesforce.com", client.InstanceURL())
	})

	t.Run("secret supplies token and instance", func(t *testing.T) {
		api := new(mockSecrets)
		api.On("GetSecretValue", mock.Anything, "sf/acme").Return(&secretsmanager.GetSecretValueOutput{
			SecretString: aws.String(`{"access_token":"from-secret","instance_url":"https://acme.my.salesforce.com"}`),
		}, nil)

		cfg := base
		cfg.InstanceURL = ""
		cfg.AccessToken = ""
		cfg.SecretID = "sf/{orgId}"

		c := NewConnector(cfg, httpCfg, NewSecretLoader(api), nil, obsmocks.NewMockLogger(), obsmocks.NewMockMetrics())
		client, err := c.Connect(context.Background(), domain.RequestDetails(`{"orgId":"acme"}`))
		require.NoError(t, err)
		assert.Equal(t, "https://acme.my.salesforce.com", client.InstanceURL())

		cred, err := client.credential(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, "from-secret", cred.AccessToken)
	})

	t.Run("oauth instance comes from the token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"access_token":"fresh","instance_url":"https://issued.my.salesforce.com"}`)
		}))
		defer srv.Close()

		cfg := base
		cfg.InstanceURL = ""
		cfg.AuthMethod = "oauth"
		cfg.TokenURL = srv.URL
		cfg.RefreshToken = "rt"

		c := NewConnector(cfg, httpCfg, nil, nil, obsmocks.NewMockLogger(), obsmocks.NewMockMetrics())
		client, err := c.Connect(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "https://issued.my.salesforce.com", client.InstanceURL())
	})

	t.Run("unknown auth method", func(t *testing.T) {
		cfg := base
		cfg.AuthMethod = "saml"
		_, err := NewConnector(cfg, httpCfg, nil, nil, nil, nil).Connect(context.Background(), nil)
		var aerr *domain.AuthError
		assert.ErrorAs(t, err, &aerr)
	})
}
