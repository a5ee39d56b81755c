package trakt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amaumene/trackarr/internal/config"
	"github.com/amaumene/trackarr/internal/utils"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		TraktClientID:     "client-id",
		TraktClientSecret: "client-secret",
		TraktAPIURL:       server.URL,
		TraktTokenFile:    filepath.Join(t.TempDir(), "token.json"),
	}
	client, err := NewClient(cfg, utils.NewNopLogger())
	require.NoError(t, err)
	return client
}

func saveValidToken(t *testing.T, c *Client) {
	t.Helper()
	require.NoError(t, c.tokenStore.SaveToken(&Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(30 * 24 * time.Hour),
	}))
}

func TestFetchAllFollowsPages(t *testing.T) {
	var requests int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, "/sync/history", r.URL.Path)
		assert.Equal(t, "client-id", r.Header.Get("trakt-api-key"))
		assert.Equal(t, "2", r.Header.Get("trakt-api-version"))
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		assert.Equal(t, strconv.Itoa(pageLimit), r.URL.Query().Get("limit"))

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		count := pageLimit
		if page == 2 {
			count = 20
		}
		items := make([]map[string]int, count)
		for i := range items {
			items[i] = map[string]int{"id": (page-1)*pageLimit + i + 1}
		}
		w.Header().Set("X-Pagination-Item-Count", strconv.Itoa(pageLimit+20))
		w.Header().Set("X-Pagination-Page-Count", "2")
		_ = json.NewEncoder(w).Encode(items)
	}))
	saveValidToken(t, client)

	entries, err := client.FetchAll(context.Background(), historyPath)
	require.NoError(t, err)
	assert.Len(t, entries, pageLimit+20)
	assert.EqualValues(t, 2, atomic.LoadInt32(&requests))
	assert.JSONEq(t, `{"id":120}`, string(entries[len(entries)-1]))
}

func TestFetchAllWithShortPages(t *testing.T) {
	const served, total = 10, 25
	var pages []int
	var mu sync.Mutex
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, strconv.Itoa(pageLimit), r.URL.Query().Get("limit"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		mu.Lock()
		pages = append(pages, page)
		mu.Unlock()

		var items []map[string]int
		for id := (page-1)*served + 1; id <= page*served && id <= total; id++ {
			items = append(items, map[string]int{"id": id})
		}
		w.Header().Set("X-Pagination-Item-Count", strconv.Itoa(total))
		_ = json.NewEncoder(w).Encode(items)
	}))
	saveValidToken(t, client)

	entries, err := client.FetchAll(context.Background(), historyPath)
	require.NoError(t, err)
	require.Len(t, entries, total)
	for i, entry := range entries {
		assert.JSONEq(t, fmt.Sprintf(`{"id":%d}`, i+1), string(entry))
	}
	assert.Equal(t, []int{1, 2, 3}, pages)
}

func TestFetchAllUnpaginatedEndpoint(t *testing.T) {
	var requests int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		fmt.Fprint(w, `[{"rating":8},{"rating":9}]`)
	}))
	saveValidToken(t, client)

	entries, err := client.FetchAll(context.Background(), ratingsPath)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&requests))
}

func TestDoRequestRetriesServerErrors(t *testing.T) {
	var requests int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	saveValidToken(t, client)

	entries, err := client.FetchAll(context.Background(), watchlistPath)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.EqualValues(t, 2, atomic.LoadInt32(&requests))
}

func TestDoRequestDoesNotRetryClientErrors(t *testing.T) {
	var requests int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.FetchAll(context.Background(), watchlistPath)
	require.Error(t, err)
	assert.True(t, isStatus(err, http.StatusUnauthorized))
	assert.EqualValues(t, 1, atomic.LoadInt32(&requests))
}

func TestImportInputOpensJSONArrays(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"type":"movie","movie":{"title":"Heat","ids":{"tmdb":949}}}]`)
	}))
	saveValidToken(t, client)

	rc, err := client.ImportInput().Watchlist(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"movie","movie":{"title":"Heat","ids":{"tmdb":949}}}]`, string(data))
}

func TestExpiringTokenIsRefreshed(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "old-refresh", body["refresh_token"])
			assert.Equal(t, "refresh_token", body["grant_type"])
			fmt.Fprint(w, `{"access_token":"new-access","refresh_token":"new-refresh","expires_in":7776000}`)
		default:
			assert.Equal(t, "Bearer new-access", r.Header.Get("Authorization"))
			fmt.Fprint(w, `[]`)
		}
	}))
	require.NoError(t, client.tokenStore.SaveToken(&Token{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}))

	_, err := client.FetchAll(context.Background(), ratingsPath)
	require.NoError(t, err)

	token, err := client.GetToken()
	require.NoError(t, err)
	assert.Equal(t, "new-access", token.AccessToken)
	assert.Equal(t, "new-refresh", token.RefreshToken)
}

func TestIsAuthenticated(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler())
	assert.False(t, client.IsAuthenticated())

	_, err := client.GetToken()
	assert.ErrorIs(t, err, ErrNoToken)

	saveValidToken(t, client)
	assert.True(t, client.IsAuthenticated())
}
