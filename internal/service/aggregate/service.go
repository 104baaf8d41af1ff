// Package aggregate composes Steam lookups into the gateway's two public
// operations: vanity resolution and full profile aggregation.
package aggregate

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/janisto/steam-gateway/internal/identifier"
	applog "github.com/janisto/steam-gateway/internal/platform/logging"
	"github.com/janisto/steam-gateway/internal/service/steam"
)

const tracerName = "github.com/janisto/steam-gateway/internal/service/aggregate"

// Error messages rendered to clients.
const (
	MsgInvalidSteamID  = "invalid steam id"
	MsgProfileNotFound = "profile not found"
	MsgProfileFailed   = "failed to fetch profile"
	MsgVanityNotFound  = "vanity url not found"
)

// DefaultFanoutLimit bounds concurrent per-friend and per-game upstream calls.
const DefaultFanoutLimit = 8

// ProfileResult is the aggregated profile. When Error is set no other field is
// meaningful.
type ProfileResult struct {
	Error   string
	Player  *steam.Profile
	Friends []FriendResult
	Games   []GameResult
}

// FriendResult is one enriched friend. Error is set when the friend's profile
// could not be fetched; SteamID is always set.
type FriendResult struct {
	SteamID string
	Profile *steam.Profile
	Error   string
}

// GameResult is a recently played game with its latest achievements.
type GameResult struct {
	AppID        int64
	Name         string
	Logo         string
	LastPlayed   time.Time
	Achievements []steam.Achievement
}

// VanityResult holds either the resolved Steam64 id or an error message. Both
// are empty when the input was already numeric.
type VanityResult struct {
	SteamID string
	Error   string
}

// Service runs the aggregation. It holds no per-request state and is safe for
// concurrent use.
type Service struct {
	client      steam.Service
	provider    steam.GamesProvider
	fanoutLimit int
	tracer      trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithFanoutLimit sets the per-request concurrency bound for friend and game
// enrichment. Values below 1 are ignored.
func WithFanoutLimit(n int) Option {
	return func(s *Service) {
		if n >= 1 {
			s.fanoutLimit = n
		}
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// New creates an aggregation service.
func New(client steam.Service, provider steam.GamesProvider, opts ...Option) *Service {
	s := &Service{
		client:      client,
		provider:    provider,
		fanoutLimit: DefaultFanoutLimit,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveVanity resolves a vanity name to a Steam64 id. Numeric input is
// returned untouched as an empty result.
func (s *Service) ResolveVanity(ctx context.Context, raw string) VanityResult {
	id := identifier.Parse(raw)
	if id.IsNumeric() {
		return VanityResult{}
	}
	if !id.Valid() {
		return VanityResult{Error: MsgVanityNotFound}
	}

	ctx, span := s.tracer.Start(ctx, "aggregate.ResolveVanity",
		trace.WithAttributes(attribute.String("steam.vanity", id.Value)))
	defer span.End()

	steamID, err := s.client.ResolveVanityURL(ctx, id.Value)
	if err != nil {
		span.RecordError(err)
		return VanityResult{Error: MsgVanityNotFound}
	}
	span.SetAttributes(attribute.String("steam.id", steamID))
	return VanityResult{SteamID: steamID}
}

// AggregateProfile builds {player, friends, games} for a Steam64 id.
//
// The friend list is fetched concurrently with the player profile on a context
// detached from cancellation, so a failed profile lookup never cancels it; its
// result is simply dropped. Games need the profile URL and start afterwards.
func (s *Service) AggregateProfile(ctx context.Context, raw string) ProfileResult {
	id := identifier.Parse(raw)
	if !id.IsNumeric() {
		return ProfileResult{Error: MsgInvalidSteamID}
	}
	steamID := id.Value

	ctx = applog.With(ctx, zap.String("steamId", steamID))
	ctx, span := s.tracer.Start(ctx, "aggregate.AggregateProfile",
		trace.WithAttributes(attribute.String("steam.id", steamID)))
	defer span.End()

	friendsCh := make(chan []FriendResult, 1)
	go func(ctx context.Context) {
		friendsCh <- s.friends(ctx, steamID)
	}(context.WithoutCancel(ctx))

	player, err := s.client.GetProfile(ctx, steamID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile lookup failed")
		return ProfileResult{Error: profileErrorMessage(err)}
	}

	games := s.games(ctx, steamID, player.ProfileURL)
	friends := <-friendsCh

	span.SetAttributes(
		attribute.Int("steam.friends", len(friends)),
		attribute.Int("steam.games", len(games)),
	)
	return ProfileResult{Player: player, Friends: friends, Games: games}
}

func profileErrorMessage(err error) string {
	if errors.Is(err, steam.ErrInvalidInput) {
		return MsgInvalidSteamID
	}
	switch steam.KindOf(err) {
	case steam.UpstreamErrorKindNotFound, steam.UpstreamErrorKindMalformed:
		return MsgProfileNotFound
	default:
		return MsgProfileFailed
	}
}
