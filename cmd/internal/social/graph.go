package social

import (
	"context"

	"loop/cmd/internal/realtime"
)

// Graph adapts the Store to the realtime.SocialGraph read boundary used by
// the presence fan-out engine.
type Graph struct {
	store Store
}

// NewGraph wraps a Store for presence fan-out reads.
func NewGraph(store Store) *Graph {
	return &Graph{store: store}
}

func (g *Graph) ListAcceptedFriends(ctx context.Context, userID string) ([]realtime.FriendEdge, error) {
	edges, err := g.store.ListAcceptedFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]realtime.FriendEdge, 0, len(edges))
	for _, e := range edges {
		out = append(out, realtime.FriendEdge{AID: e.AID, BID: e.BID})
	}
	return out, nil
}

func (g *Graph) ListMemberships(ctx context.Context, userID string) ([]string, error) {
	return g.store.ListMemberships(ctx, userID)
}

func (g *Graph) ListOtherMembers(ctx context.Context, conversationIDs []string, excludeUserID string) ([]string, error) {
	return g.store.ListOtherMembers(ctx, conversationIDs, excludeUserID)
}
