package aggregate

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	applog "github.com/janisto/steam-gateway/internal/platform/logging"
	"github.com/janisto/steam-gateway/internal/service/steam"
)

// friends returns up to steam.MaxFriends enriched friends in upstream order.
// Every failure degrades to an empty list; a single friend's failure only
// marks that entry.
func (s *Service) friends(ctx context.Context, steamID string) []FriendResult {
	ctx, span := s.tracer.Start(ctx, "aggregate.friends")
	defer span.End()

	refs, err := s.client.GetFriendList(ctx, steamID)
	switch {
	case steam.KindOf(err) == steam.UpstreamErrorKindPermissionDenied, err == nil && len(refs) == 0:
		applog.LogInfo(ctx, "friends list private or empty")
		return []FriendResult{}
	case err != nil:
		span.RecordError(err)
		applog.LogError(ctx, "friends list unavailable", err)
		return []FriendResult{}
	}

	if len(refs) > steam.MaxFriends {
		refs = refs[:steam.MaxFriends]
	}
	span.SetAttributes(attribute.Int("steam.friends", len(refs)))

	results := make([]FriendResult, len(refs))
	var g errgroup.Group
	g.SetLimit(s.fanoutLimit)
	for i, ref := range refs {
		g.Go(func() error {
			p, err := s.client.GetProfile(ctx, ref.SteamID)
			if err != nil {
				results[i] = FriendResult{SteamID: ref.SteamID, Error: profileErrorMessage(err)}
				return nil
			}
			results[i] = FriendResult{SteamID: ref.SteamID, Profile: p}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
