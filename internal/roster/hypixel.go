// Package roster reconciles local role state against the external Hypixel
// guild roster: identity resolution via Mojang, roster fetch via the Hypixel
// API, and a periodic fail-closed sync job.
package roster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/skysanctuary/warden/internal/setup/config"
	"github.com/skysanctuary/warden/pkg/utils"
	"go.uber.org/zap"
)

var (
	// ErrRosterUnavailable is returned when the Hypixel API reports failure
	// or cannot be reached. Callers treat it as "no data".
	ErrRosterUnavailable = errors.New("guild roster unavailable")
)

// GuildMember is one roster entry from the external guild.
type GuildMember struct {
	UUID       string           `json:"uuid"`
	ExpHistory map[string]int64 `json:"expHistory"`
}

// Guild is the external guild roster.
type Guild struct {
	Members []GuildMember `json:"members"`
}

// DailyXP returns a map of member UUID to the XP earned on the given day
// (formatted "2006-01-02"). Members without an entry for the day map to 0;
// UUIDs absent from the map are not in the guild.
func (g *Guild) DailyXP(day string) map[string]int64 {
	daily := make(map[string]int64, len(g.Members))
	for _, member := range g.Members {
		daily[member.UUID] = member.ExpHistory[day]
	}
	return daily
}

// guildResponse is the Hypixel API envelope.
type guildResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
	Guild   *Guild `json:"guild"`
}

// HypixelClient fetches guild rosters from the Hypixel API.
type HypixelClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *zap.Logger
}

// NewHypixelClient creates a Hypixel API client.
func NewHypixelClient(cfg *config.Hypixel, logger *zap.Logger) *HypixelClient {
	return &HypixelClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    "https://api.hypixel.net",
		apiKey:     cfg.APIKey,
		logger:     logger.Named("hypixel"),
	}
}

// GuildByName fetches the roster for the named guild. Transport errors and
// non-success responses both degrade to ErrRosterUnavailable; the caller
// must not crash on it.
func (c *HypixelClient) GuildByName(ctx context.Context, name string) (*Guild, error) {
	endpoint := fmt.Sprintf("%s/guild?%s", c.baseURL, url.Values{
		"key":  {c.apiKey},
		"name": {name},
	}.Encode())

	body, err := utils.WithRetry(ctx, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: status %d", ErrRosterUnavailable, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}, utils.GetRosterRetryOptions())
	if err != nil {
		c.logger.Warn("Failed to fetch guild roster", zap.String("guild", name), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrRosterUnavailable, err)
	}

	var response guildResponse
	if err := sonic.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %w", ErrRosterUnavailable, err)
	}
	if !response.Success || response.Guild == nil {
		c.logger.Warn("Hypixel API reported failure",
			zap.String("guild", name),
			zap.String("cause", response.Cause))
		return nil, ErrRosterUnavailable
	}

	return response.Guild, nil
}
