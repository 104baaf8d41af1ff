package steam

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const mediaBaseURL = "https://media.steampowered.com/steamcommunity/public/images/apps"

type steamOwnedGame struct {
	AppID           int64  `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int    `json:"playtime_forever"`
	ImgIconURL      string `json:"img_icon_url"`
	RTimeLastPlayed int64  `json:"rtime_last_played"`
}

// RecentGames lists games through IPlayerService/GetOwnedGames. profileURL is
// unused; it is part of the GamesProvider contract for page-based providers.
// A profile that hides its games yields (nil, nil).
func (c *Client) RecentGames(ctx context.Context, _ string, steamID string) ([]GameRef, error) {
	if !validSteamID(steamID) {
		return nil, fmt.Errorf("fetching owned games: %w", ErrInvalidInput)
	}
	start := time.Now()
	games, err := c.ownedGames(ctx, steamID)
	return games, finish(ctx, c.metrics, opGetOwnedGames, start, err, zap.String("steamId", steamID))
}

func (c *Client) ownedGames(ctx context.Context, steamID string) ([]GameRef, error) {
	var body struct {
		Response struct {
			GameCount int              `json:"game_count"`
			Games     []steamOwnedGame `json:"games"`
		} `json:"response"`
	}
	q := url.Values{
		"steamid":                   {steamID},
		"include_appinfo":           {"1"},
		"include_played_free_games": {"1"},
	}
	if err := c.get(ctx, opGetOwnedGames, "/IPlayerService/GetOwnedGames/v1/", q, &body); err != nil {
		return nil, err
	}
	if len(body.Response.Games) == 0 {
		return nil, nil
	}

	games := make([]GameRef, 0, len(body.Response.Games))
	for _, g := range body.Response.Games {
		games = append(games, GameRef{
			AppID:      g.AppID,
			Name:       g.Name,
			Logo:       logoURL(g.AppID, g.ImgIconURL),
			LastPlayed: unixTime(g.RTimeLastPlayed),
		})
	}
	return recentGames(games, MaxRecentGames), nil
}

func logoURL(appID int64, hash string) string {
	if hash == "" {
		return ""
	}
	return mediaBaseURL + "/" + strconv.FormatInt(appID, 10) + "/" + hash + ".jpg"
}

// recentGames sorts by last played time, newest first, and keeps at most limit.
func recentGames(games []GameRef, limit int) []GameRef {
	slices.SortStableFunc(games, func(a, b GameRef) int {
		return b.LastPlayed.Compare(a.LastPlayed)
	})
	if len(games) > limit {
		games = games[:limit]
	}
	return games
}
