// Package workspace talks to the workspace apps API: listing apps and
// applying stop/delete transitions. Authentication uses OAuth2
// client-credentials with the workspace service principal.
package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quietops/appsweep/internal/lifecycle"
)

const (
	appsPath  = "/api/2.0/apps"
	tokenPath = "/oidc/v1/token"

	// appTimeLayout is the timestamp format the apps API reports.
	appTimeLayout = "2006-01-02T15:04:05Z"
)

// Client is an HTTP implementation of Service for a single workspace.
type Client struct {
	endpoint     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       *slog.Logger

	token       string
	tokenExpiry time.Time
}

// NewClient builds a client for one workspace endpoint. The credential pair
// is the workspace service principal's application_id and its secret.
func NewClient(endpoint, clientID, clientSecret string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint:     strings.TrimRight(endpoint, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{},
		logger:       logger,
	}
}

// wireApp is the apps API representation of an app.
type wireApp struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	CreateTime    string `json:"create_time"`
	UpdateTime    string `json:"update_time"`
	ComputeStatus struct {
		State string `json:"state"`
	} `json:"compute_status"`
}

type listAppsResponse struct {
	Apps          []wireApp `json:"apps"`
	NextPageToken string    `json:"next_page_token"`
}

// ListApps fetches the full app list for the workspace, following
// pagination. Apps with unparseable timestamps are logged and dropped from
// the snapshot rather than failing the listing.
func (c *Client) ListApps(ctx context.Context) ([]lifecycle.App, error) {
	var apps []lifecycle.App
	pageToken := ""

	for {
		u := c.endpoint + appsPath
		if pageToken != "" {
			u += "?page_token=" + url.QueryEscape(pageToken)
		}

		var page listAppsResponse
		if err := c.doJSON(ctx, http.MethodGet, u, &page); err != nil {
			return nil, fmt.Errorf("list apps: %w", err)
		}

		for _, wa := range page.Apps {
			app, err := wa.toApp()
			if err != nil {
				c.logger.Error("skipping app with malformed timestamps",
					"app", wa.Name, "error", err)
				continue
			}
			apps = append(apps, app)
		}

		if page.NextPageToken == "" {
			return apps, nil
		}
		pageToken = page.NextPageToken
	}
}

// StopApp stops an app by name. One attempt, no retries.
func (c *Client) StopApp(ctx context.Context, name string) error {
	u := c.endpoint + appsPath + "/" + url.PathEscape(name) + "/stop"
	if err := c.doJSON(ctx, http.MethodPost, u, nil); err != nil {
		return fmt.Errorf("stop app %s: %w", name, err)
	}
	return nil
}

// DeleteApp deletes an app by name. One attempt, no retries.
func (c *Client) DeleteApp(ctx context.Context, name string) error {
	u := c.endpoint + appsPath + "/" + url.PathEscape(name)
	if err := c.doJSON(ctx, http.MethodDelete, u, nil); err != nil {
		return fmt.Errorf("delete app %s: %w", name, err)
	}
	return nil
}

func (wa wireApp) toApp() (lifecycle.App, error) {
	created, err := time.Parse(appTimeLayout, wa.CreateTime)
	if err != nil {
		return lifecycle.App{}, fmt.Errorf("create_time %q: %w", wa.CreateTime, err)
	}
	updated, err := time.Parse(appTimeLayout, wa.UpdateTime)
	if err != nil {
		return lifecycle.App{}, fmt.Errorf("update_time %q: %w", wa.UpdateTime, err)
	}
	return lifecycle.App{
		Name:      wa.Name,
		URL:       wa.URL,
		State:     lifecycle.State(wa.ComputeStatus.State),
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

// doJSON performs an authenticated request and decodes a JSON response body
// into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, rawURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken returns a cached bearer token, exchanging client credentials
// for a fresh one when the cache is empty or within a minute of expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", "all-apis")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+tokenPath,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("authenticate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("authenticate: decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("authenticate: empty access token")
	}

	c.token = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return c.token, nil
}
