package steam

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/steam-gateway/internal/platform/timeutil"
	"github.com/janisto/steam-gateway/internal/service/aggregate"
	steamsvc "github.com/janisto/steam-gateway/internal/service/steam"
)

// Aggregator is the subset of the aggregation service used by the handlers.
type Aggregator interface {
	ResolveVanity(ctx context.Context, raw string) aggregate.VanityResult
	AggregateProfile(ctx context.Context, raw string) aggregate.ProfileResult
}

// Register wires Steam routes into the provided API router.
//
// Both operations answer 200. Failures are reported in the body.
func Register(api huma.API, svc Aggregator) {
	huma.Register(api, huma.Operation{
		OperationID: "get-steam-profile",
		Method:      http.MethodGet,
		Path:        "/steam/user/{userid}/profile",
		Summary:     "Get an aggregated Steam profile",
		Description: "Returns the player summary, up to 5 friends and up to 10 recently played games with their latest achievements. Optional parts degrade to empty lists.",
		Tags:        []string{"Steam"},
		// An empty userid segment is answered in the body like any other
		// unusable id, not rejected with 422.
		SkipValidateParams: true,
	}, func(ctx context.Context, input *UserGetInput) (*ProfileGetOutput, error) {
		result := svc.AggregateProfile(ctx, input.UserID)
		return &ProfileGetOutput{Body: toHTTPProfile(result)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-steam-vanityurl",
		Method:      http.MethodGet,
		Path:        "/steam/user/{userid}/vanityurl",
		Summary:     "Resolve a Steam vanity name",
		Description: "Resolves a custom profile name to a Steam64 id. A numeric id yields an empty object.",
		Tags:        []string{"Steam"},
		// An empty userid segment is answered in the body like any other
		// unusable id, not rejected with 422.
		SkipValidateParams: true,
	}, func(ctx context.Context, input *UserGetInput) (*VanityGetOutput, error) {
		result := svc.ResolveVanity(ctx, input.UserID)
		return &VanityGetOutput{Body: VanityData{
			SteamID: result.SteamID,
			Error:   result.Error,
		}}, nil
	})
}

func toHTTPProfile(r aggregate.ProfileResult) ProfileData {
	if r.Error != "" {
		return ProfileData{Error: r.Error}
	}
	return ProfileData{
		Player:  toHTTPPlayer(r.Player),
		Friends: toHTTPFriends(r.Friends),
		Games:   toHTTPGames(r.Games),
	}
}

func toHTTPPlayer(p *steamsvc.Profile) *Player {
	if p == nil {
		return nil
	}
	return &Player{
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
		TimeCreated:              timeutil.FromTime(p.TimeCreated),
		LastLogoff:               timeutil.FromTime(p.LastLogoff),
	}
}

func toHTTPFriends(friends []aggregate.FriendResult) []Friend {
	result := make([]Friend, len(friends))
	for i := range friends {
		result[i] = Friend{
			SteamID: friends[i].SteamID,
			Player:  toHTTPPlayer(friends[i].Profile),
			Error:   friends[i].Error,
		}
	}
	return result
}

func toHTTPGames(games []aggregate.GameResult) []Game {
	result := make([]Game, len(games))
	for i := range games {
		g := &games[i]
		result[i] = Game{
			AppID:        g.AppID,
			Name:         g.Name,
			Logo:         g.Logo,
			LastPlayed:   timeutil.FromTime(g.LastPlayed),
			Achievements: toHTTPAchievements(g.Achievements),
		}
	}
	return result
}

func toHTTPAchievements(achievements []steamsvc.Achievement) []Achievement {
	result := make([]Achievement, len(achievements))
	for i := range achievements {
		a := &achievements[i]
		result[i] = Achievement{
			APIName:     a.APIName,
			Name:        a.Name,
			Description: a.Description,
			Icon:        a.Icon,
			IconGray:    a.IconGray,
			Hidden:      a.Hidden,
			Achieved:    a.Achieved,
			UnlockTime:  timeutil.FromTime(a.UnlockTime),
		}
	}
	return result
}
