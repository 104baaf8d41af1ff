package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type steamPlayerAchievement struct {
	APIName    string `json:"apiname"`
	Achieved   int    `json:"achieved"`
	UnlockTime int64  `json:"unlocktime"`
}

type steamSchemaAchievement struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Description  string `json:"description"`
	Icon         string `json:"icon"`
	IconGray     string `json:"icongray"`
	Hidden       int    `json:"hidden"`
	DefaultValue int    `json:"defaultvalue"`
}

type playerStats struct {
	SteamID      string                   `json:"steamID"`
	GameName     string                   `json:"gameName"`
	Achievements []steamPlayerAchievement `json:"achievements"`
	Success      bool                     `json:"success"`
	Error        string                   `json:"error"`
}

// GetAchievements returns at most MaxAchievements of the player's achievements
// for appID, most recently unlocked first. Player progress and the game schema
// are fetched concurrently and joined by achievement API name.
func (c *Client) GetAchievements(ctx context.Context, appID int64, steamID string) ([]Achievement, error) {
	if appID <= 0 || !validSteamID(steamID) {
		return nil, fmt.Errorf("fetching achievements: %w", ErrInvalidInput)
	}
	start := time.Now()
	achievements, err := c.getAchievements(ctx, appID, steamID)
	return achievements, finish(ctx, c.metrics, opGetAchievements, start, err,
		zap.String("steamId", steamID), zap.Int64("appId", appID))
}

func (c *Client) getAchievements(ctx context.Context, appID int64, steamID string) ([]Achievement, error) {
	var (
		progress []steamPlayerAchievement
		schema   []steamSchemaAchievement
		g        errgroup.Group
	)
	g.Go(func() error {
		var err error
		progress, err = c.playerAchievements(ctx, appID, steamID)
		return err
	})
	g.Go(func() error {
		var err error
		schema, err = c.gameSchema(ctx, appID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return latestAchievements(mergeAchievements(progress, schema), MaxAchievements), nil
}

func (c *Client) playerAchievements(ctx context.Context, appID int64, steamID string) ([]steamPlayerAchievement, error) {
	q := url.Values{"appid": {strconv.FormatInt(appID, 10)}, "steamid": {steamID}}
	resp, err := c.doRequest(ctx, "/ISteamUserStats/GetPlayerAchievements/v1/", q)
	if err != nil {
		return nil, newUpstreamError(opGetPlayerAchievements, UpstreamErrorKindUnavailable, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		PlayerStats playerStats `json:"playerstats"`
	}
	if resp.StatusCode != http.StatusOK {
		// Steam explains 400/403 answers in the playerstats envelope.
		_ = json.Unmarshal(readErrorBody(resp.Body), &body)
		return nil, playerStatsError(resp, body.PlayerStats.Error)
	}

	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, newUpstreamError(opGetPlayerAchievements, UpstreamErrorKindMalformed, resp.StatusCode,
			fmt.Errorf("decoding steam response: %w", err))
	}
	if !body.PlayerStats.Success && body.PlayerStats.Error != "" {
		return nil, playerStatsError(resp, body.PlayerStats.Error)
	}
	return body.PlayerStats.Achievements, nil
}

// playerStatsError maps Steam's playerstats error text: a private profile is
// permission denied, any other explained failure ("Requested app has no
// stats") means there is nothing to show for the game.
func playerStatsError(resp *http.Response, message string) *UpstreamError {
	upErr := statusError(opGetPlayerAchievements, resp, message)
	if upErr.Kind == UpstreamErrorKindUnavailable && message != "" && resp.StatusCode < http.StatusInternalServerError {
		return newUpstreamError(opGetPlayerAchievements, UpstreamErrorKindNotFound, resp.StatusCode, errors.New(message))
	}
	return upErr
}

func (c *Client) gameSchema(ctx context.Context, appID int64) ([]steamSchemaAchievement, error) {
	var body struct {
		Game struct {
			GameName           string `json:"gameName"`
			AvailableGameStats struct {
				Achievements []steamSchemaAchievement `json:"achievements"`
			} `json:"availableGameStats"`
		} `json:"game"`
	}
	q := url.Values{"appid": {strconv.FormatInt(appID, 10)}}
	if err := c.get(ctx, opGetSchemaForGame, "/ISteamUserStats/GetSchemaForGame/v2/", q, &body); err != nil {
		return nil, err
	}
	return body.Game.AvailableGameStats.Achievements, nil
}

// mergeAchievements joins progress records with schema records on the API
// name. Progress order is kept; records without a schema entry fall back to
// the API name for display.
func mergeAchievements(progress []steamPlayerAchievement, schema []steamSchemaAchievement) []Achievement {
	byName := make(map[string]steamSchemaAchievement, len(schema))
	for _, s := range schema {
		byName[s.Name] = s
	}

	merged := make([]Achievement, 0, len(progress))
	for _, p := range progress {
		a := Achievement{
			APIName:    p.APIName,
			Name:       p.APIName,
			Achieved:   p.Achieved == 1,
			UnlockTime: unixTime(p.UnlockTime),
		}
		if s, ok := byName[p.APIName]; ok {
			if s.DisplayName != "" {
				a.Name = s.DisplayName
			}
			a.Description = s.Description
			a.Icon = s.Icon
			a.IconGray = s.IconGray
			a.Hidden = s.Hidden == 1
		}
		merged = append(merged, a)
	}
	return merged
}

// latestAchievements sorts by unlock time, newest first, and keeps at most limit.
// Equal unlock times keep their relative order.
func latestAchievements(achievements []Achievement, limit int) []Achievement {
	slices.SortStableFunc(achievements, func(a, b Achievement) int {
		return b.UnlockTime.Compare(a.UnlockTime)
	})
	if len(achievements) > limit {
		achievements = achievements[:limit]
	}
	return achievements
}
