package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/leighmacdonald/steamid/v4/steamid"
	"go.uber.org/zap"

	applog "github.com/janisto/steam-gateway/internal/platform/logging"
	"github.com/janisto/steam-gateway/internal/platform/metrics"
)

const (
	defaultBaseURL = "https://api.steampowered.com"
	userAgent      = "steam-gateway"

	// maxErrorBody bounds how much of a non-200 body is read for diagnostics.
	maxErrorBody = 4 << 10
)

// Operation names used in errors, logs and metrics.
const (
	opResolveVanityURL      = "ResolveVanityURL"
	opGetProfile            = "GetProfile"
	opGetFriendList         = "GetFriendList"
	opGetAchievements       = "GetAchievements"
	opGetPlayerAchievements = "GetPlayerAchievements"
	opGetSchemaForGame      = "GetSchemaForGame"
	opGetOwnedGames         = "GetOwnedGames"
	opScrapeGames           = "ScrapeGames"
)

// Client implements Service using the Steam Web API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	metrics    *metrics.UpstreamMetrics
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithAPIKey sets the Steam Web API key sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithMetrics records every upstream call on m.
func WithMetrics(m *metrics.UpstreamMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a new Steam Web API client.
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Steam API response types (field names match Steam's JSON).

type steamPlayer struct {
	SteamID                  string `json:"steamid"`
	PersonaName              string `json:"personaname"`
	ProfileURL               string `json:"profileurl"`
	Avatar                   string `json:"avatar"`
	AvatarMedium             string `json:"avatarmedium"`
	AvatarFull               string `json:"avatarfull"`
	AvatarHash               string `json:"avatarhash"`
	PersonaState             int    `json:"personastate"`
	PersonaStateFlags        int    `json:"personastateflags"`
	CommunityVisibilityState int    `json:"communityvisibilitystate"`
	ProfileState             int    `json:"profilestate"`
	CommentPermission        int    `json:"commentpermission"`
	RealName                 string `json:"realname"`
	PrimaryClanID            string `json:"primaryclanid"`
	CountryCode              string `json:"loccountrycode"`
	StateCode                string `json:"locstatecode"`
	GameID                   string `json:"gameid"`
	GameExtraInfo            string `json:"gameextrainfo"`
	TimeCreated              int64  `json:"timecreated"`
	LastLogoff               int64  `json:"lastlogoff"`
}

type steamFriend struct {
	SteamID      string `json:"steamid"`
	Relationship string `json:"relationship"`
	FriendSince  int64  `json:"friend_since"`
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	if query == nil {
		query = url.Values{}
	}
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}
	query.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	return resp, nil
}

// get issues one request and decodes a 200 body into target.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, target any) error {
	resp, err := c.doRequest(ctx, path, query)
	if err != nil {
		return newUpstreamError(op, UpstreamErrorKindUnavailable, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()
	return decodeResponse(op, resp, target)
}

func decodeResponse(op string, resp *http.Response, target any) error {
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return newUpstreamError(op, UpstreamErrorKindMalformed, resp.StatusCode,
				fmt.Errorf("decoding steam response: %w", err))
		}
		return nil
	}
	return statusError(op, resp, "")
}

// statusError classifies a non-200 response. message is Steam's own error text
// when the body carried one.
func statusError(op string, resp *http.Response, message string) *UpstreamError {
	var detail error
	if message != "" {
		detail = errors.New(message)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden,
		strings.Contains(strings.ToLower(message), "not public"):
		return newUpstreamError(op, UpstreamErrorKindPermissionDenied, resp.StatusCode, detail)
	case resp.StatusCode == http.StatusNotFound:
		return newUpstreamError(op, UpstreamErrorKindNotFound, resp.StatusCode, detail)
	default:
		return newUpstreamError(op, UpstreamErrorKindUnavailable, resp.StatusCode, detail)
	}
}

// transportError strips the request URL from client errors so the API key
// never reaches logs.
func transportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s request: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

// finish records the outcome of one public operation and logs failures.
func finish(ctx context.Context, m *metrics.UpstreamMetrics, op string, start time.Time, err error, fields ...zap.Field) error {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = string(KindOf(err))
		logFailure(ctx, op, err, fields...)
	}
	m.Observe(op, outcome, time.Since(start))
	return err
}

func logFailure(ctx context.Context, op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("operation", op))
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		fields = append(fields, zap.String("kind", string(upErr.Kind)), zap.Int("status", upErr.Status))
	}
	switch KindOf(err) {
	case UpstreamErrorKindPermissionDenied:
		applog.LogWarn(ctx, "steam resource is private", append(fields, zap.Error(err))...)
	case UpstreamErrorKindNotFound:
		applog.LogWarn(ctx, "steam resource not found", append(fields, zap.Error(err))...)
	default:
		applog.LogError(ctx, "steam request failed", err, fields...)
	}
}

// validSteamID accepts only numeric Steam64 ids.
func validSteamID(id string) bool {
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return false
	}
	sid := steamid.New(id)
	return sid.Valid()
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func (c *Client) ResolveVanityURL(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("resolving vanity url: %w", ErrInvalidInput)
	}
	start := time.Now()
	id, err := c.resolveVanityURL(ctx, name)
	return id, finish(ctx, c.metrics, opResolveVanityURL, start, err, zap.String("vanityName", name))
}

func (c *Client) resolveVanityURL(ctx context.Context, name string) (string, error) {
	var body struct {
		Response struct {
			SteamID string `json:"steamid"`
			Success int    `json:"success"`
			Message string `json:"message"`
		} `json:"response"`
	}
	q := url.Values{"vanityurl": {name}}
	if err := c.get(ctx, opResolveVanityURL, "/ISteamUser/ResolveVanityURL/v1/", q, &body); err != nil {
		return "", err
	}

	if body.Response.Success != 1 {
		msg := body.Response.Message
		if msg == "" {
			msg = "success=" + strconv.Itoa(body.Response.Success)
		}
		return "", newUpstreamError(opResolveVanityURL, UpstreamErrorKindNotFound, http.StatusOK, errors.New(msg))
	}
	if !validSteamID(body.Response.SteamID) {
		return "", newUpstreamError(opResolveVanityURL, UpstreamErrorKindMalformed, http.StatusOK,
			fmt.Errorf("invalid steamid %q", body.Response.SteamID))
	}
	return body.Response.SteamID, nil
}

func (c *Client) GetProfile(ctx context.Context, steamID string) (*Profile, error) {
	if !validSteamID(steamID) {
		return nil, fmt.Errorf("fetching profile: %w", ErrInvalidInput)
	}
	start := time.Now()
	p, err := c.getProfile(ctx, steamID)
	return p, finish(ctx, c.metrics, opGetProfile, start, err, zap.String("steamId", steamID))
}

func (c *Client) getProfile(ctx context.Context, steamID string) (*Profile, error) {
	var body struct {
		Response struct {
			Players []steamPlayer `json:"players"`
		} `json:"response"`
	}
	q := url.Values{"steamids": {steamID}}
	if err := c.get(ctx, opGetProfile, "/ISteamUser/GetPlayerSummaries/v2/", q, &body); err != nil {
		return nil, err
	}

	if len(body.Response.Players) == 0 {
		return nil, newUpstreamError(opGetProfile, UpstreamErrorKindNotFound, http.StatusOK, nil)
	}
	p := body.Response.Players[0]
	if p.SteamID == "" || p.ProfileURL == "" {
		return nil, newUpstreamError(opGetProfile, UpstreamErrorKindMalformed, http.StatusOK,
			errors.New("player summary missing steamid or profileurl"))
	}

	return &Profile{
		SteamID:                  p.SteamID,
		PersonaName:              p.PersonaName,
		ProfileURL:               p.ProfileURL,
		Avatar:                   p.Avatar,
		AvatarMedium:             p.AvatarMedium,
		AvatarFull:               p.AvatarFull,
		AvatarHash:               p.AvatarHash,
		PersonaState:             p.PersonaState,
		PersonaStateFlags:        p.PersonaStateFlags,
		CommunityVisibilityState: p.CommunityVisibilityState,
		ProfileState:             p.ProfileState,
		CommentPermission:        p.CommentPermission,
		RealName:                 p.RealName,
		PrimaryClanID:            p.PrimaryClanID,
		CountryCode:              p.CountryCode,
		StateCode:                p.StateCode,
		GameID:                   p.GameID,
		GameExtraInfo:            p.GameExtraInfo,
		TimeCreated:              unixTime(p.TimeCreated),
		LastLogoff:               unixTime(p.LastLogoff),
	}, nil
}

// GetFriendList returns the player's friends in upstream order. A list that
// Steam omits entirely yields (nil, nil).
func (c *Client) GetFriendList(ctx context.Context, steamID string) ([]FriendRef, error) {
	if !validSteamID(steamID) {
		return nil, fmt.Errorf("fetching friend list: %w", ErrInvalidInput)
	}
	start := time.Now()
	friends, err := c.getFriendList(ctx, steamID)
	return friends, finish(ctx, c.metrics, opGetFriendList, start, err, zap.String("steamId", steamID))
}

func (c *Client) getFriendList(ctx context.Context, steamID string) ([]FriendRef, error) {
	var body struct {
		FriendsList *struct {
			Friends []steamFriend `json:"friends"`
		} `json:"friendslist"`
	}
	q := url.Values{"steamid": {steamID}, "relationship": {"friend"}}
	if err := c.get(ctx, opGetFriendList, "/ISteamUser/GetFriendList/v1/", q, &body); err != nil {
		return nil, err
	}
	if body.FriendsList == nil {
		return nil, nil
	}

	friends := make([]FriendRef, 0, len(body.FriendsList.Friends))
	for _, f := range body.FriendsList.Friends {
		if !validSteamID(f.SteamID) {
			applog.LogDebug(ctx, "skipping friend with invalid steam id", zap.String("friendSteamId", f.SteamID))
			continue
		}
		friends = append(friends, FriendRef{
			SteamID:      f.SteamID,
			Relationship: f.Relationship,
			FriendSince:  unixTime(f.FriendSince),
		})
	}
	return friends, nil
}

// readErrorBody reads a bounded prefix of a non-200 body.
func readErrorBody(r io.Reader) []byte {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return b
}

// Compile-time interface checks
var (
	_ Service       = (*Client)(nil)
	_ GamesProvider = (*Client)(nil)
)
