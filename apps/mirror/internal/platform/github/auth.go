// Package github provides factory functions for creating authenticated GitHub
// API clients. The returned *github.Client is used by the fetch package for
// both contents API listings and raw downloads.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

const (
	defaultAPIURL = "https://api.github.com"
	userAgent     = "treemirror"
)

// Auth selects how requests are authenticated. The first configured method
// wins, in this order: GitHub App, token, raw Authorization header. With
// nothing set requests are anonymous.
type Auth struct {
	Token string
	// Header is sent verbatim as the Authorization header, e.g. "token abc".
	Header string

	AppID          int64
	InstallationID int64
	PrivateKeyPath string
}

// New builds a client for auth against baseURL ("" for api.github.com).
// timeout bounds each HTTP request; zero means no limit.
func New(auth Auth, baseURL string, timeout time.Duration) (*gogithub.Client, error) {
	var httpClient *http.Client
	switch {
	case auth.AppID != 0:
		hc, err := appHTTPClient(auth.AppID, auth.InstallationID, auth.PrivateKeyPath, baseURL)
		if err != nil {
			return nil, err
		}
		httpClient = hc
	case auth.Token != "":
		httpClient = tokenHTTPClient(auth.Token)
	default:
		httpClient = headerHTTPClient(auth.Header)
	}
	// go-github copies the http.Client, so the timeout must be set first.
	httpClient.Timeout = timeout
	return newClient(httpClient, baseURL), nil
}

// NewTokenClient creates a *github.Client authenticated with a personal access token.
// Pass baseURL="" to use the real GitHub API, or a custom URL
// (e.g. "http://localhost:9090") for a mock server.
func NewTokenClient(token, baseURL string) *gogithub.Client {
	return newClient(tokenHTTPClient(token), baseURL)
}

// NewAppClient creates a *github.Client authenticated as a GitHub App installation.
// privateKeyPath is the path to the app's PEM private key.
func NewAppClient(appID, installationID int64, privateKeyPath, baseURL string) (*gogithub.Client, error) {
	hc, err := appHTTPClient(appID, installationID, privateKeyPath, baseURL)
	if err != nil {
		return nil, err
	}
	return newClient(hc, baseURL), nil
}

// NewHeaderClient creates a *github.Client that sends header as the
// Authorization value on every request. An empty header means anonymous.
func NewHeaderClient(header, baseURL string) *gogithub.Client {
	return newClient(headerHTTPClient(header), baseURL)
}

func tokenHTTPClient(token string) *http.Client {
	if token == "" {
		return &http.Client{}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return oauth2.NewClient(context.Background(), ts)
}

func appHTTPClient(appID, installationID int64, privateKeyPath, baseURL string) (*http.Client, error) {
	base := baseURL
	if base == "" {
		base = defaultAPIURL
	}
	tr, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, appID, installationID, privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("github app auth: %w", err)
	}
	tr.BaseURL = base
	return &http.Client{Transport: tr}, nil
}

func headerHTTPClient(header string) *http.Client {
	if header == "" {
		return &http.Client{}
	}
	return &http.Client{Transport: &headerTransport{value: header, base: http.DefaultTransport}}
}

func newClient(httpClient *http.Client, baseURL string) *gogithub.Client {
	c := gogithub.NewClient(httpClient)
	c.UserAgent = userAgent
	applyBaseURL(c, baseURL)
	return c
}

type headerTransport struct {
	value string
	base  http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", t.value)
	return t.base.RoundTrip(r)
}

func applyBaseURL(c *gogithub.Client, baseURL string) {
	if baseURL == "" || baseURL == defaultAPIURL {
		return
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return
	}
	c.BaseURL = u
}
