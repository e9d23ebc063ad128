package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remhind/internal/testdata"
)

func calendarServer(t *testing.T, body []byte) (*httptest.Server, *atomic.Int32, *atomic.Bool) {
	t.Helper()
	var hits atomic.Int32
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if down.Load() {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits, &down
}

func TestFetcher_ConditionalAndFallback(t *testing.T) {
	srv, hits, down := calendarServer(t, testdata.Calendar(testdata.VEvent))
	f := NewFetcher(afero.NewMemMapFs(), "/cache")
	sub := Subscription{ID: "team", URL: srv.URL + "/team.ics?token=secret"}

	res, err := f.FetchOne(context.Background(), sub)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Contains(t, string(res.Body), "UID:20190310")

	res, err = f.FetchOne(context.Background(), sub)
	require.NoError(t, err)
	assert.True(t, res.FromCache, "304 should reuse the cached body")

	down.Store(true)
	res, err = f.FetchOne(context.Background(), sub)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetcher_ErrorWithoutCache(t *testing.T) {
	srv, _, down := calendarServer(t, nil)
	down.Store(true)
	f := NewFetcher(afero.NewMemMapFs(), "/cache")

	_, err := f.FetchOne(context.Background(), Subscription{ID: "x", URL: srv.URL})
	assert.Error(t, err)

	_, err = f.FetchOne(context.Background(), Subscription{ID: "empty"})
	assert.Error(t, err)
}

func TestFetcher_Sync(t *testing.T) {
	srv, _, _ := calendarServer(t, testdata.Calendar(testdata.VEvent, testdata.RRuleTodo))
	f := NewFetcher(afero.NewMemMapFs(), "")
	reg := &recorder{reject: "a8f5a030c6f94010a6654d79b8be5372@mirabelle"}

	stats, err := f.Sync(context.Background(), []Subscription{
		{ID: "team", URL: srv.URL},
		{ID: "broken", URL: "http://127.0.0.1:0/nothing.ics"},
	}, reg)
	assert.Error(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Components)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, "team", reg.added["20190310"])

	stats, err = f.Sync(context.Background(), []Subscription{{ID: "team", URL: srv.URL}}, reg)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Files)
	assert.Equal(t, 1, stats.Unchanged)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://cal.example.com/...(redacted)", redactURL("https://cal.example.com/u/me.ics?token=abc"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
