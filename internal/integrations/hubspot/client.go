// Package hubspot connects a brand to HubSpot's CMS blog.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/httpclient"
)

// BlogPost is the subset of HubSpot's CMS post shape this service touches.
type BlogPost struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	PostBody string `json:"postBody"`
	Slug     string `json:"slug"`
	State    string `json:"state,omitempty"`
}

type listPostsResponse struct {
	Results []BlogPost `json:"results"`
	Total   int        `json:"total"`
}

// Client is a thin REST client for the CMS blog API.
type Client struct {
	baseURL    string
	httpClient *httpclient.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.hubapi.com"
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpclient.NewClient(30 * time.Second),
	}
}

// ListPosts returns the portal's blog posts.
func (c *Client) ListPosts(ctx context.Context, accessToken string, limit int) ([]BlogPost, error) {
	if limit <= 0 {
		limit = 20
	}
	url := fmt.Sprintf("%s/cms/v3/blogs/posts?limit=%d", c.baseURL, limit)

	var parsed listPostsResponse
	if err := c.do(ctx, http.MethodGet, url, accessToken, nil, &parsed); err != nil {
		return nil, err
	}
	return parsed.Results, nil
}

// CreatePost publishes a new blog post.
func (c *Client) CreatePost(ctx context.Context, accessToken string, post *BlogPost) (*BlogPost, error) {
	url := c.baseURL + "/cms/v3/blogs/posts"
	var created BlogPost
	if err := c.do(ctx, http.MethodPost, url, accessToken, post, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdatePost patches an existing blog post.
func (c *Client) UpdatePost(ctx context.Context, accessToken string, post *BlogPost) (*BlogPost, error) {
	url := fmt.Sprintf("%s/cms/v3/blogs/posts/%s", c.baseURL, post.ID)
	var updated BlogPost
	if err := c.do(ctx, http.MethodPatch, url, accessToken, post, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) do(ctx context.Context, method, url, accessToken string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return apperrors.NewUpstreamAPIFailedError("hubspot", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return apperrors.NewUpstreamAPIFailedError("hubspot", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewUpstreamAPIFailedError("hubspot", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewUpstreamAPIFailedError("hubspot", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewUpstreamAPIFailedError("hubspot",
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 200)))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return apperrors.NewUpstreamAPIFailedError("hubspot", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
