// Package steam talks to the Steam Web API and the Steam community pages.
//
// Every operation makes exactly one attempt per upstream call and returns
// failures as *UpstreamError values classified by Kind. Callers decide which
// failures are fatal; the client only logs them.
package steam

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service errors
var (
	ErrNotFound         = errors.New("steam resource not found")
	ErrPermissionDenied = errors.New("steam resource is private")
	ErrUnavailable      = errors.New("steam upstream unavailable")
	ErrMalformed        = errors.New("steam response malformed")
	ErrInvalidInput     = errors.New("invalid steam request input")
)

// UpstreamErrorKind classifies Steam upstream failures.
type UpstreamErrorKind string

const (
	UpstreamErrorKindNotFound         UpstreamErrorKind = "not_found"
	UpstreamErrorKindPermissionDenied UpstreamErrorKind = "permission_denied"
	UpstreamErrorKindUnavailable      UpstreamErrorKind = "unavailable"
	UpstreamErrorKindMalformed        UpstreamErrorKind = "malformed"
)

func (k UpstreamErrorKind) sentinel() error {
	switch k {
	case UpstreamErrorKindNotFound:
		return ErrNotFound
	case UpstreamErrorKindPermissionDenied:
		return ErrPermissionDenied
	case UpstreamErrorKindMalformed:
		return ErrMalformed
	default:
		return ErrUnavailable
	}
}

// UpstreamError includes the failing operation and HTTP status for error mapping.
type UpstreamError struct {
	Kind      UpstreamErrorKind
	Status    int
	Operation string
	cause     error
}

func newUpstreamError(op string, kind UpstreamErrorKind, status int, detail error) *UpstreamError {
	cause := kind.sentinel()
	if detail != nil {
		cause = errors.Join(cause, detail)
	}
	return &UpstreamError{Kind: kind, Status: status, Operation: op, cause: cause}
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "steam upstream error"
	}
	if e.cause == nil {
		return fmt.Sprintf("steam %s failed (kind=%s status=%d)", e.Operation, e.Kind, e.Status)
	}
	return fmt.Sprintf("steam %s failed (kind=%s status=%d): %v", e.Operation, e.Kind, e.Status, e.cause)
}

// Unwrap enables errors.Is/As against sentinel service errors.
func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// KindOf returns the upstream classification of err, or "" when err is not an
// upstream failure.
func KindOf(err error) UpstreamErrorKind {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return UpstreamErrorKindNotFound
	case errors.Is(err, ErrPermissionDenied):
		return UpstreamErrorKindPermissionDenied
	case errors.Is(err, ErrMalformed):
		return UpstreamErrorKindMalformed
	case errors.Is(err, ErrUnavailable):
		return UpstreamErrorKindUnavailable
	}
	return ""
}

// Profile is a Steam player summary.
type Profile struct {
	SteamID                  string
	PersonaName              string
	ProfileURL               string
	Avatar                   string
	AvatarMedium             string
	AvatarFull               string
	AvatarHash               string
	PersonaState             int
	PersonaStateFlags        int
	CommunityVisibilityState int
	ProfileState             int
	CommentPermission        int
	RealName                 string
	PrimaryClanID            string
	CountryCode              string
	StateCode                string
	GameID                   string
	GameExtraInfo            string
	TimeCreated              time.Time
	LastLogoff               time.Time
}

// FriendRef is one entry of a friend list.
type FriendRef struct {
	SteamID      string
	Relationship string
	FriendSince  time.Time
}

// GameRef is a recently played game.
type GameRef struct {
	AppID      int64
	Name       string
	Logo       string
	LastPlayed time.Time
}

// Achievement joins a player's progress on an achievement with the game schema.
type Achievement struct {
	APIName     string
	Name        string
	Description string
	Icon        string
	IconGray    string
	Hidden      bool
	Achieved    bool
	UnlockTime  time.Time
}

// Truncation limits applied to upstream lists.
const (
	MaxFriends      = 5
	MaxRecentGames  = 10
	MaxAchievements = 6
)

// Service defines Steam Web API operations.
type Service interface {
	ResolveVanityURL(ctx context.Context, name string) (string, error)
	GetProfile(ctx context.Context, steamID string) (*Profile, error)
	GetFriendList(ctx context.Context, steamID string) ([]FriendRef, error)
	GetAchievements(ctx context.Context, appID int64, steamID string) ([]Achievement, error)
}

// GamesProvider lists a player's recently played games, most recent first and at
// most MaxRecentGames entries.
type GamesProvider interface {
	RecentGames(ctx context.Context, profileURL, steamID string) ([]GameRef, error)
}
