// Package ghost talks to the Ghost CMS: recipes are read from the Content API
// and meal plans are published through the Admin API.
package ghost

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"budget-meal-planner/internal/config"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

// Post represents a single post from the Ghost API.
type Post struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	HTML      string `json:"html"`
	Status    string `json:"status,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// PostsResponse is the top-level structure of the Ghost API response for posts.
type PostsResponse struct {
	Posts []Post `json:"posts"`
	Meta  struct {
		Pagination struct {
			Page  int  `json:"page"`
			Pages int  `json:"pages"`
			Next  *int `json:"next"`
		} `json:"pagination"`
	} `json:"meta"`
}

// Client is an interface for a Ghost API client (Content & Admin).
type Client interface {
	FetchRecipes(ctx context.Context) ([]Post, error)
	CreatePost(ctx context.Context, title, html string, publish bool) (*Post, error)
}

// ghostClient is the concrete implementation of the Ghost API client.
type ghostClient struct {
	httpClient *http.Client
	config     config.GhostConfig
	now        func() time.Time
}

// NewClient creates a new Ghost API client.
func NewClient(cfg config.GhostConfig) Client {
	return &ghostClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		config:     cfg,
		now:        time.Now,
	}
}

// FetchRecipes fetches every post from the Ghost Content API, following
// pagination.
func (c *ghostClient) FetchRecipes(ctx context.Context) ([]Post, error) {
	var posts []Post
	for page := 1; page > 0; {
		url := fmt.Sprintf("%s/ghost/api/v3/content/posts/?key=%s&formats=html&page=%d",
			strings.TrimRight(c.config.URL, "/"), c.config.ContentKey, page)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}

		var postsResponse PostsResponse
		err = func() error {
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("content api error: status %d", resp.StatusCode)
			}
			if err := json.NewDecoder(resp.Body).Decode(&postsResponse); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return nil
		}()
		if err != nil {
			return nil, err
		}

		posts = append(posts, postsResponse.Posts...)
		page = 0
		if next := postsResponse.Meta.Pagination.Next; next != nil {
			page = *next
		}
	}
	return posts, nil
}

// CreatePost creates a new post using the Ghost Admin API.
func (c *ghostClient) CreatePost(ctx context.Context, title, html string, publish bool) (*Post, error) {
	token, err := c.createAdminToken()
	if err != nil {
		return nil, fmt.Errorf("failed to create admin token: %w", err)
	}

	status := "draft"
	if publish {
		status = "published"
	}

	body, err := json.Marshal(map[string][]Post{
		"posts": {{Title: title, HTML: html, Status: status}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal post: %w", err)
	}
	url := fmt.Sprintf("%s/ghost/api/v3/admin/posts/?source=html", strings.TrimRight(c.config.URL, "/"))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Ghost "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		var errResp any
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("admin api error: status %d, body: %v", resp.StatusCode, errResp)
	}

	var response PostsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Posts) == 0 {
		return nil, fmt.Errorf("no post returned from api")
	}
	return &response.Posts[0], nil
}

// createAdminToken generates a short-lived JWT for the Admin API.
func (c *ghostClient) createAdminToken() (string, error) {
	id, secretHex, ok := strings.Cut(c.config.AdminKey, ":")
	if !ok || id == "" {
		return "", fmt.Errorf("invalid admin key format: expected id:secret")
	}

	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return "", fmt.Errorf("failed to decode secret hex: %w", err)
	}

	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
		"aud": "/v3/admin/",
	})
	token.Header["kid"] = id

	return token.SignedString(secret)
}
