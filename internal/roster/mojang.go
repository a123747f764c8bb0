package roster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/redis/rueidis"
	"github.com/skysanctuary/warden/internal/setup/config"
	"github.com/skysanctuary/warden/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrIdentityNotFound is returned when no account exists for a name.
	ErrIdentityNotFound = errors.New("no account found for display name")
	// ErrIdentityUnavailable is returned on transport or API failure.
	ErrIdentityUnavailable = errors.New("identity resolution unavailable")
)

// IdentityCache caches successful name resolutions. Negative results are
// never cached: a demotion decision must always be based on a fresh lookup.
type IdentityCache interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Set(ctx context.Context, name, uuid string, ttl time.Duration) error
}

// RedisIdentityCache is an IdentityCache over rueidis.
type RedisIdentityCache struct {
	client rueidis.Client
}

// NewRedisIdentityCache creates a Redis-backed identity cache.
func NewRedisIdentityCache(client rueidis.Client) *RedisIdentityCache {
	return &RedisIdentityCache{client: client}
}

func (c *RedisIdentityCache) cacheKey(name string) string {
	return "identity:name:" + strings.ToLower(name)
}

// Get returns the cached UUID for a name, if present.
func (c *RedisIdentityCache) Get(ctx context.Context, name string) (string, bool, error) {
	uuid, err := c.client.Do(ctx, c.client.B().Get().Key(c.cacheKey(name)).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read identity cache: %w", err)
	}
	return uuid, true, nil
}

// Set stores a resolved UUID with the given TTL.
func (c *RedisIdentityCache) Set(ctx context.Context, name, uuid string, ttl time.Duration) error {
	err := c.client.Do(ctx,
		c.client.B().Set().Key(c.cacheKey(name)).Value(uuid).Ex(ttl).Build(),
	).Error()
	if err != nil {
		return fmt.Errorf("failed to write identity cache: %w", err)
	}
	return nil
}

// MojangClient resolves display names to account UUIDs via the Mojang API.
// Lookups are rate limited and successful resolutions are cached.
type MojangClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	cache      IdentityCache
	cacheTTL   time.Duration
	retryOpts  utils.RetryOptions
	logger     *zap.Logger
}

// NewMojangClient creates a Mojang API client.
func NewMojangClient(cfg *config.Roster, cache IdentityCache, logger *zap.Logger) *MojangClient {
	return &MojangClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://api.mojang.com",
		limiter:    rate.NewLimiter(rate.Limit(cfg.LookupsPerSec), 1),
		cache:      cache,
		cacheTTL:   time.Duration(cfg.CacheTTLHours) * time.Hour,
		retryOpts:  utils.GetLookupRetryOptions(),
		logger:     logger.Named("mojang"),
	}
}

// mojangProfile is the Mojang API profile response.
type mojangProfile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ResolveUUID resolves a display name to an account UUID. Cached resolutions
// are served without touching the API; misses wait on the rate limiter.
// Transient API failures are retried; a not-found answer is definitive and
// is returned immediately.
func (c *MojangClient) ResolveUUID(ctx context.Context, name string) (string, error) {
	if uuid, cached, err := c.cache.Get(ctx, name); err != nil {
		c.logger.Warn("Identity cache read failed", zap.Error(err))
	} else if cached {
		return uuid, nil
	}

	endpoint := fmt.Sprintf("%s/users/profiles/minecraft/%s", c.baseURL, url.PathEscape(name))

	uuid, err := utils.WithRetry(ctx, func() (string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", backoff.Permanent(fmt.Errorf("%w: %w", ErrIdentityUnavailable, err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return "", backoff.Permanent(fmt.Errorf("%w: %w", ErrIdentityUnavailable, err))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrIdentityUnavailable, err)
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			// Fall through to decode
		case http.StatusNotFound, http.StatusNoContent:
			return "", backoff.Permanent(fmt.Errorf("%w: %q", ErrIdentityNotFound, name))
		default:
			return "", fmt.Errorf("%w: status %d", ErrIdentityUnavailable, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrIdentityUnavailable, err)
		}

		var profile mojangProfile
		if err := sonic.Unmarshal(body, &profile); err != nil {
			return "", fmt.Errorf("%w: malformed profile: %w", ErrIdentityUnavailable, err)
		}
		if profile.ID == "" {
			return "", backoff.Permanent(fmt.Errorf("%w: %q", ErrIdentityNotFound, name))
		}
		return profile.ID, nil
	}, c.retryOpts)
	if err != nil {
		return "", err
	}

	if err := c.cache.Set(ctx, name, uuid, c.cacheTTL); err != nil {
		c.logger.Warn("Identity cache write failed", zap.Error(err))
	}

	return uuid, nil
}
