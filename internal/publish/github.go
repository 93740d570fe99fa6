package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com"

// Client is a minimal GitHub REST client covering repository creation.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// Repo is the subset of the repository resource forgeloop reads.
type Repo struct {
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
}

// NewClient creates a client for the public API.
func NewClient(token string) *Client {
	return &Client{
		BaseURL: DefaultAPIURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateRepo creates name under org, or under the authenticated user when
// org is empty. An existing repository is not an error; created reports
// whether a new one was made.
func (c *Client) CreateRepo(ctx context.Context, org, name string, private bool) (Repo, bool, error) {
	path := "/user/repos"
	if org != "" {
		path = "/orgs/" + org + "/repos"
	}

	body, _ := json.Marshal(map[string]any{"name": name, "private": private})
	var repo Repo
	status, err := c.do(ctx, http.MethodPost, path, body, &repo)
	switch {
	case err == nil:
		return repo, true, nil
	case status == http.StatusUnprocessableEntity:
		owner := org
		if owner == "" {
			if owner, err = c.Login(ctx); err != nil {
				return Repo{}, false, err
			}
		}
		return Repo{
			FullName: owner + "/" + name,
			HTMLURL:  "https://github.com/" + owner + "/" + name,
		}, false, nil
	default:
		return Repo{}, false, err
	}
}

// Login returns the login of the token's user.
func (c *Client) Login(ctx context.Context) (string, error) {
	var user struct {
		Login string `json:"login"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/user", nil, &user); err != nil {
		return "", err
	}
	return user.Login, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) (int, error) {
	base := c.BaseURL
	if base == "" {
		base = DefaultAPIURL
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(base, "/")+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("github %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("github %s %s: reading response: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &apiErr)
		return resp.StatusCode, fmt.Errorf("github %s %s: %d %s", method, path, resp.StatusCode, apiErr.Message)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("github %s %s: decoding response: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}
