package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	appLog "remhind/internal/log"
)

// Subscription is a remote calendar polled over HTTP.
type Subscription struct {
	// ID names the subscription in logs and as the component source.
	ID  string
	URL string
}

// FetchResult is the body of one subscription, fresh or cached.
type FetchResult struct {
	Subscription Subscription
	Body         []byte
	FromCache    bool
}

// cacheEntry holds HTTP validators for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads subscriptions with conditional requests (ETag and
// Last-Modified) and keeps the last good body on fs so a flaky server
// does not empty the calendar.
type Fetcher struct {
	client   *http.Client
	fs       afero.Fs
	cacheDir string

	// synced maps subscription ID to the digest of the last registered
	// body. Sync is not safe for concurrent use.
	synced map[string][sha256.Size]byte
}

func NewFetcher(fs afero.Fs, cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/ics-cache"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		fs:       fs,
		cacheDir: cacheDir,
		synced:   make(map[string][sha256.Size]byte),
	}
}

// Sync fetches every subscription and registers its components. A
// subscription that fails is logged and skipped; the joined errors are
// returned alongside the stats of the ones that worked.
func (f *Fetcher) Sync(ctx context.Context, subs []Subscription, reg Registrar) (LoadStats, error) {
	var stats LoadStats
	var errs []error
	for _, sub := range subs {
		res, err := f.FetchOne(ctx, sub)
		if err != nil {
			appLog.Error("ics fetch failed", err, "id", sub.ID, "url", redactURL(sub.URL))
			errs = append(errs, fmt.Errorf("%s: %w", sub.ID, err))
			continue
		}
		digest := sha256.Sum256(res.Body)
		if prev, ok := f.synced[sub.ID]; ok && prev == digest {
			stats.Unchanged++
			continue
		}
		stats.Files++
		comps, err := Parse(sub.ID, res.Body)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sub.ID, err))
			continue
		}
		for _, comp := range comps {
			if err := reg.Add(comp, sub.ID); err != nil {
				stats.Rejected++
				continue
			}
			stats.Components++
		}
		f.synced[sub.ID] = digest
	}
	return stats, errors.Join(errs...)
}

// FetchOne fetches a single subscription. Network errors and non-OK
// statuses fall back to the cached body when there is one.
func (f *Fetcher) FetchOne(ctx context.Context, sub Subscription) (FetchResult, error) {
	if sub.URL == "" {
		return FetchResult{}, errors.New("subscription URL is empty")
	}

	cachePath := f.cachePathForURL(sub.URL)
	if err := f.fs.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := afero.ReadFile(f.fs, filepath.Join(cachePath, "body.ics"))
	cached := func(reason error) (FetchResult, error) {
		if len(cachedBody) == 0 {
			return FetchResult{}, reason
		}
		appLog.Warn("ics fetch failed, using cached body", "id", sub.ID, "url", redactURL(sub.URL), "reason", reason)
		return FetchResult{Subscription: sub, Body: cachedBody, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sub.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return cached(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return cached(err)
		}
		newMeta := cacheEntry{
			URL:          sub.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("ics cache save failed", err, "id", sub.ID)
		}
		appLog.Debug("ics fetch success", "id", sub.ID, "url", redactURL(sub.URL), "bytes", len(body))
		return FetchResult{Subscription: sub, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Debug("ics fetch not modified", "id", sub.ID)
		return FetchResult{Subscription: sub, Body: cachedBody, FromCache: true}, nil

	default:
		return cached(errors.New(resp.Status))
	}
}

func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := afero.ReadFile(f.fs, filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

// saveCache writes the body before the metadata so the validators never
// describe a body that is not on disk.
func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	if err := afero.WriteFile(f.fs, filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(f.fs, filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; calendar URLs often carry tokens.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "ics://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
