package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	// DefaultRobotsTTL is how long fetched robots.txt rules are reused.
	DefaultRobotsTTL = 30 * time.Minute

	maxRobotsSize = 512 * 1024
)

// RobotsAgent answers robots.txt questions for the HTTP engine. Rules are
// cached per scheme and host. Any failure to obtain or parse robots.txt
// allows the URL.
type RobotsAgent struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.RWMutex
	cache map[string]robotsEntry
}

type robotsEntry struct {
	fetched time.Time
	rules   *robotstxt.RobotsData
}

// NewRobotsAgent creates an agent that fetches robots.txt with client and
// matches rules for userAgent. A non-positive ttl selects DefaultRobotsTTL.
func NewRobotsAgent(client *http.Client, userAgent string, ttl time.Duration, logger *slog.Logger) *RobotsAgent {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if ttl <= 0 {
		ttl = DefaultRobotsTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RobotsAgent{
		client:    client,
		userAgent: userAgent,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
		cache:     make(map[string]robotsEntry),
	}
}

// Allowed reports whether target may be fetched.
func (a *RobotsAgent) Allowed(ctx context.Context, target *url.URL) bool {
	if target == nil || !target.IsAbs() {
		return false
	}

	rules, err := a.rules(ctx, target)
	if err != nil {
		a.logger.Debug("robots.txt unavailable, allowing", "host", target.Host, "error", err)
		return true
	}

	group := rules.FindGroup(a.userAgent)
	if group == nil {
		return true
	}
	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}
	return group.Test(path)
}

func (a *RobotsAgent) rules(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	key := strings.ToLower(target.Scheme + "://" + target.Host)

	a.mu.RLock()
	entry, ok := a.cache[key]
	a.mu.RUnlock()
	if ok && a.now().Sub(entry.fetched) < a.ttl {
		return entry.rules, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("robots.txt returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	a.mu.Lock()
	a.cache[key] = robotsEntry{fetched: a.now(), rules: data}
	a.mu.Unlock()

	return data, nil
}

// Purge drops the cached rules for a scheme and host such as
// "https://example.com".
func (a *RobotsAgent) Purge(origin string) {
	a.mu.Lock()
	delete(a.cache, strings.ToLower(strings.TrimSuffix(origin, "/")))
	a.mu.Unlock()
}
