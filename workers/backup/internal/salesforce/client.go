package salesforce

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/balu-bunny/lambdaTest/shared/observability/types"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

const maxErrorBody = 4 << 10

// ClientOptions configures a Client.
type ClientOptions struct {
	InstanceURL         string
	APIVersion          string
	Tokens              TokenSource
	HTTPClient          *http.Client
	UserAgent           string
	TrustedHostSuffixes []string
	Logger              types.Logger
	Metrics             types.Metrics
}

// Client is an authenticated client for one org. The credential is cached
// for the lifetime of the client only.
type Client struct {
	base       *url.URL
	apiVersion string
	tokens     TokenSource
	httpClient *http.Client
	userAgent  string
	trusted    []string
	logger     types.Logger
	metrics    types.Metrics

	mu   sync.Mutex
	cred *Credential
}

// NewClient validates opts and creates a client.
func NewClient(opts ClientOptions) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.InstanceURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &domain.ValidationError{Field: "SF_INSTANCE_URL", Message: fmt.Sprintf("invalid instance url %q", opts.InstanceURL)}
	}
	if opts.Tokens == nil {
		return nil, &domain.AuthError{Reason: "no token source"}
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.APIVersion == "" {
		opts.APIVersion = "v60.0"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "sfbackup/1.0"
	}

	return &Client{
		base:       base,
		apiVersion: opts.APIVersion,
		tokens:     opts.Tokens,
		httpClient: opts.HTTPClient,
		userAgent:  opts.UserAgent,
		trusted:    opts.TrustedHostSuffixes,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}, nil
}

// WithCredential seeds the token cache.
func (c *Client) WithCredential(cred Credential) *Client {
	c.mu.Lock()
	c.cred = &cred
	c.mu.Unlock()
	return c
}

// InstanceURL returns the org base URL.
func (c *Client) InstanceURL() string { return c.base.String() }

// Do sends a request to path under /services/data/<version>. A 401 answer
// triggers exactly one token refresh and retry; a second 401 is an
// AuthError. Transport failures are returned as TransientError. Non-2xx
// answers are returned to the caller untouched.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*http.Response, error) {
	target, err := c.apiURL(path)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, method, target, body, headers, true)
}

func (c *Client) apiURL(path string) (*url.URL, error) {
	ref, err := url.Parse("/services/data/" + c.apiVersion + "/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, &domain.ValidationError{Field: "path", Message: err.Error()}
	}
	return c.base.ResolveReference(ref), nil
}

func (c *Client) do(ctx context.Context, method string, target *url.URL, body []byte, headers map[string]string, withAuth bool) (*http.Response, error) {
	op := method + " " + target.Path

	resp, err := c.send(ctx, method, target, body, headers, withAuth, false)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !withAuth {
		return resp, nil
	}

	drain(resp)
	if c.logger != nil {
		c.logger.Warn(ctx, "Credential rejected, refreshing", types.Fields{"op": op})
	}

	resp, err = c.send(ctx, method, target, body, headers, withAuth, true)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		return nil, &domain.AuthError{Reason: "credential rejected after refresh by " + op}
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method string, target *url.URL, body []byte, headers map[string]string, withAuth, refresh bool) (*http.Response, error) {
	op := method + " " + target.Path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if withAuth {
		cred, err := c.credential(ctx, refresh)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.record(method, start, err)
	if err != nil {
		return nil, &domain.TransientError{Op: op, Err: err}
	}
	return resp, nil
}

func (c *Client) credential(ctx context.Context, refresh bool) (Credential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cred != nil && !refresh {
		return *c.cred, nil
	}

	cred, err := c.tokens.Token(ctx)
	if err != nil {
		return Credential{}, err
	}
	c.cred = &cred
	return cred, nil
}

func (c *Client) record(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	op := "salesforce_" + strings.ToLower(method)
	c.metrics.RecordDuration(op, time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordError(op, "transport_error")
	}
}

// trustedHost reports whether the bearer may be sent to host.
func (c *Client) trustedHost(host string) bool {
	host = strings.ToLower(host)
	if host == strings.ToLower(c.base.Host) {
		return true
	}
	hostname := host
	if h, _, ok := strings.Cut(host, ":"); ok {
		hostname = h
	}
	return underSuffix(hostname, c.trusted)
}

// underSuffix reports whether hostname is a subdomain of one of suffixes.
// A suffix matches on a label boundary only: "salesforce.com" and
// ".salesforce.com" both accept "acme.my.salesforce.com" and both reject
// "evilsalesforce.com".
func underSuffix(hostname string, suffixes []string) bool {
	hostname = strings.ToLower(hostname)
	for _, suffix := range suffixes {
		suffix = strings.ToLower(strings.TrimSpace(suffix))
		if suffix == "" || suffix == "." {
			continue
		}
		if !strings.HasPrefix(suffix, ".") {
			suffix = "." + suffix
		}
		if strings.HasSuffix(hostname, suffix) {
			return true
		}
	}
	return false
}

// remoteError reads a bounded part of a non-2xx body and closes it.
func remoteError(resp *http.Response, op string) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &domain.RemoteError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}
