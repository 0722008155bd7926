package salesforce

import (
	"context"
	"net/http"
	"strings"

	"github.com/balu-bunny/lambdaTest/shared/config"
	"github.com/balu-bunny/lambdaTest/shared/observability/types"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

// OrgResolver maps an org id onto its instance URL. An empty answer means
// the org is unknown.
type OrgResolver interface {
	InstanceURL(orgID string) string
}

// Connector builds a fresh Client per invocation and per org.
type Connector struct {
	cfg        config.SalesforceConfig
	httpClient *http.Client
	userAgent  string
	secrets    *SecretLoader
	orgs       OrgResolver
	logger     types.Logger
	metrics    types.Metrics
}

// NewConnector creates a connector. secrets and orgs may be nil.
func NewConnector(cfg config.SalesforceConfig, httpCfg config.HTTPConfig, secrets *SecretLoader, orgs OrgResolver, logger types.Logger, metrics types.Metrics) *Connector {
	return &Connector{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: httpCfg.Timeout},
		userAgent:  httpCfg.UserAgent,
		secrets:    secrets,
		orgs:       orgs,
		logger:     logger,
		metrics:    metrics,
	}
}

// Connect resolves the org named by details and returns a client for it.
// The instance URL comes from the org catalog, then from an org id that is
// itself a trusted Salesforce host, then from SF_INSTANCE_URL, and finally
// from the instance_url of the issued token.
func (c *Connector) Connect(ctx context.Context, details domain.RequestDetails) (*Client, error) {
	settings := c.cfg
	orgID := details.OrgID()

	if url := c.instanceFor(orgID); url != "" {
		settings.InstanceURL = url
	}

	if settings.SecretID != "" && c.secrets != nil {
		secret, err := c.secrets.Load(ctx, SecretName(settings.SecretID, orgID))
		if err != nil {
			return nil, err
		}
		applySecret(&settings, secret)
	}

	tokens, err := c.tokenSource(settings)
	if err != nil {
		return nil, err
	}

	var seed *Credential
	if settings.InstanceURL == "" {
		cred, err := tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		if cred.InstanceURL == "" {
			return nil, &domain.ValidationError{Field: "SF_INSTANCE_URL", Message: "no instance url for org " + orgID}
		}
		settings.InstanceURL = cred.InstanceURL
		seed = &cred
	}

	client, err := NewClient(ClientOptions{
		InstanceURL:         settings.InstanceURL,
		APIVersion:          settings.APIVersion,
		Tokens:              tokens,
		HTTPClient:          c.httpClient,
		UserAgent:           c.userAgent,
		TrustedHostSuffixes: settings.TrustedHostSuffixes,
		Logger:              c.logger,
		Metrics:             c.metrics,
	})
	if err != nil {
		return nil, err
	}
	if seed != nil {
		client.WithCredential(*seed)
	}

	if c.logger != nil {
		c.logger.Debug(ctx, "Connected to org", types.Fields{
			"org_id":      orgID,
			"instance":    client.InstanceURL(),
			"auth_method": settings.AuthMethod,
		})
	}
	return client, nil
}

func (c *Connector) instanceFor(orgID string) string {
	if orgID == "" {
		return ""
	}
	if c.orgs != nil {
		if url := c.orgs.InstanceURL(orgID); url != "" {
			return url
		}
	}

	host := strings.ToLower(orgID)
	if strings.ContainsAny(host, "/:@?#\\ ") || !strings.Contains(host, ".") {
		return ""
	}
	if underSuffix(host, c.cfg.TrustedHostSuffixes) {
		return "https://" + host
	}
	return ""
}

func (c *Connector) tokenSource(settings config.SalesforceConfig) (TokenSource, error) {
	switch strings.ToLower(settings.AuthMethod) {
	case "", "token":
		return StaticTokenSource{AccessToken: settings.AccessToken, InstanceURL: settings.InstanceURL}, nil
	case "oauth":
		return &OAuthTokenSource{
			TokenURL:     settings.TokenURL,
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			RefreshToken: settings.RefreshToken,
			RetryDelay:   settings.RefreshRetryDelay,
			HTTPClient:   c.httpClient,
			Logger:       c.logger,
		}, nil
	default:
		return nil, &domain.AuthError{Reason: "unsupported auth method " + settings.AuthMethod}
	}
}

func applySecret(settings *config.SalesforceConfig, s *Secret) {
	if s.AccessToken != "" {
		settings.AccessToken = s.AccessToken
	}
	if s.ClientID != "" {
		settings.ClientID = s.ClientID
	}
	if s.ClientSecret != "" {
		settings.ClientSecret = s.ClientSecret
	}
	if s.RefreshToken != "" {
		settings.RefreshToken = s.RefreshToken
	}
	if s.TokenURL != "" {
		settings.TokenURL = s.TokenURL
	}
	if s.InstanceURL != "" && settings.InstanceURL == "" {
		settings.InstanceURL = s.InstanceURL
	}
}
