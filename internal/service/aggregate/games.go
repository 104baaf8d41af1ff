package aggregate

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	applog "github.com/janisto/steam-gateway/internal/platform/logging"
	"github.com/janisto/steam-gateway/internal/service/steam"
)

// games returns the recently played games with their latest achievements, in
// provider order. A failed achievement lookup empties only that game's list.
func (s *Service) games(ctx context.Context, steamID, profileURL string) []GameResult {
	ctx, span := s.tracer.Start(ctx, "aggregate.games")
	defer span.End()

	refs, err := s.provider.RecentGames(ctx, profileURL, steamID)
	switch {
	case steam.KindOf(err) == steam.UpstreamErrorKindPermissionDenied, err == nil && len(refs) == 0:
		applog.LogInfo(ctx, "games private or empty")
		return []GameResult{}
	case err != nil:
		span.RecordError(err)
		applog.LogError(ctx, "games list unavailable", err)
		return []GameResult{}
	}

	if len(refs) > steam.MaxRecentGames {
		refs = refs[:steam.MaxRecentGames]
	}
	span.SetAttributes(attribute.Int("steam.games", len(refs)))

	results := make([]GameResult, len(refs))
	var g errgroup.Group
	g.SetLimit(s.fanoutLimit)
	for i, ref := range refs {
		g.Go(func() error {
			achievements, err := s.client.GetAchievements(ctx, ref.AppID, steamID)
			if err != nil || achievements == nil {
				achievements = []steam.Achievement{}
			}
			results[i] = GameResult{
				AppID:        ref.AppID,
				Name:         ref.Name,
				Logo:         ref.Logo,
				LastPlayed:   ref.LastPlayed,
				Achievements: achievements,
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
