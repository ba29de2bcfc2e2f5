package ghost

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"budget-meal-planner/internal/config"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchRecipes(t *testing.T) {
	t.Run("FollowsPagination", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test_key", r.URL.Query().Get("key"))

			w.WriteHeader(http.StatusOK)
			switch r.URL.Query().Get("page") {
			case "1":
				fmt.Fprintln(w, `{
					"posts": [{"id": "1", "title": "Recipe 1", "html": "<h1>Recipe 1</h1>", "updated_at": "2023-10-27T10:00:00Z"}],
					"meta": {"pagination": {"page": 1, "pages": 2, "next": 2}}
				}`)
			default:
				fmt.Fprintln(w, `{
					"posts": [{"id": "2", "title": "Recipe 2", "html": "<h1>Recipe 2</h1>", "updated_at": "2023-10-28T10:00:00Z"}],
					"meta": {"pagination": {"page": 2, "pages": 2, "next": null}}
				}`)
			}
		}))
		defer server.Close()

		client := NewClient(config.GhostConfig{URL: server.URL, ContentKey: "test_key"})
		posts, err := client.FetchRecipes(context.Background())
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, "2", posts[1].ID)
	})

	t.Run("ServerError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient(config.GhostConfig{URL: server.URL, ContentKey: "test_key"})
		_, err := client.FetchRecipes(context.Background())
		assert.ErrorContains(t, err, "status 500")
	})
}

func TestCreatePost(t *testing.T) {
	secret := []byte("0123456789abcdef")
	adminKey := "key-id:" + hex.EncodeToString(secret)

	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "html", r.URL.Query().Get("source"))

			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Ghost ")
			token, err := jwt.Parse(raw, func(tok *jwt.Token) (any, error) {
				assert.Equal(t, "key-id", tok.Header["kid"])
				return secret, nil
			}, jwt.WithAudience("/v3/admin/"), jwt.WithValidMethods([]string{"HS256"}))
			if !assert.NoError(t, err) || !assert.True(t, token.Valid) {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			body, _ := io.ReadAll(r.Body)
			var req map[string][]Post
			if !assert.NoError(t, json.Unmarshal(body, &req)) || !assert.Len(t, req["posts"], 1) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			assert.Equal(t, "draft", req["posts"][0].Status)

			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"posts": [{"id": "new", "title": %q, "status": "draft"}]}`, req["posts"][0].Title)
		}))
		defer server.Close()

		client := NewClient(config.GhostConfig{URL: server.URL, AdminKey: adminKey})
		post, err := client.CreatePost(context.Background(), "Week of 2025-06-09", "<p>plan</p>", false)
		require.NoError(t, err)
		assert.Equal(t, "new", post.ID)
		assert.Equal(t, "Week of 2025-06-09", post.Title)
	})

	t.Run("InvalidAdminKey", func(t *testing.T) {
		client := NewClient(config.GhostConfig{URL: "http://unused", AdminKey: "no-secret"})
		_, err := client.CreatePost(context.Background(), "t", "h", false)
		assert.ErrorContains(t, err, "invalid admin key format")
	})

	t.Run("AdminAPIError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprintln(w, `{"errors": [{"message": "nope"}]}`)
		}))
		defer server.Close()

		client := NewClient(config.GhostConfig{URL: server.URL, AdminKey: adminKey})
		_, err := client.CreatePost(context.Background(), "t", "h", true)
		assert.ErrorContains(t, err, "status 401")
	})
}
