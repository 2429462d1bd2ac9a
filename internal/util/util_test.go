package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRobotsChecker_CanFetch(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits++
			fmt.Fprint(w, "User-agent: *\nDisallow: /private\nCrawl-delay: 2\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rc := NewRobotsChecker("Veritas-Test", server.Client())
	ctx := context.Background()

	allowed, delay, err := rc.CanFetch(ctx, server.URL+"/search?q=x")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2*time.Second, delay)

	allowed, _, err = rc.CanFetch(ctx, server.URL+"/private/page")
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.Equal(t, 1, hits, "robots.txt should be fetched once per host")

	rc.Clear()
	_, _, _ = rc.CanFetch(ctx, server.URL+"/")
	assert.Equal(t, 2, hits)
}

func TestRobotsChecker_MissingFileAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	rc := NewRobotsChecker("Veritas-Test", server.Client())
	allowed, _, err := rc.CanFetch(context.Background(), server.URL+"/anything")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "http://secure.local:3128", "example.org")

	req := &http.Request{URL: &url.URL{Scheme: "https", Host: "www.snopes.com"}}
	u, err := proxy(req)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "secure.local:3128", u.Host)

	req = &http.Request{URL: &url.URL{Scheme: "http", Host: "www.altnews.in"}}
	u, err = proxy(req)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "proxy.local:3128", u.Host)

	req = &http.Request{URL: &url.URL{Scheme: "https", Host: "example.org"}}
	u, err = proxy(req)
	require.NoError(t, err)
	assert.Nil(t, u)
}
