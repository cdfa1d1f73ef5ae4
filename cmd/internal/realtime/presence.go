package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	v1 "loop/shared/contracts/realtime/v1"
)

// Presence statuses. Last-writer-wins; the persisted status is authoritative
// for the next poll/login, live delivery is best-effort.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusBusy    = "busy"
)

// ValidStatus reports whether s is a known presence status.
func ValidStatus(s string) bool {
	switch s {
	case StatusOnline, StatusOffline, StatusBusy:
		return true
	}
	return false
}

// FriendEdge is a canonical accepted-friend pair with AID < BID.
type FriendEdge struct {
	AID string
	BID string
}

// SocialGraph is the read boundary the presence engine needs from the
// membership store. Reads are not transactionally consistent with the status
// write that triggered them; a stale snapshot may under- or over-deliver by
// the set of changes made in the same instant.
type SocialGraph interface {
	// ListAcceptedFriends returns every ACCEPTED friend edge touching userID.
	ListAcceptedFriends(ctx context.Context, userID string) ([]FriendEdge, error)
	// ListMemberships returns the conversation ids userID belongs to.
	ListMemberships(ctx context.Context, userID string) ([]string, error)
	// ListOtherMembers returns the distinct members of the given conversations,
	// excluding excludeUserID.
	ListOtherMembers(ctx context.Context, conversationIDs []string, excludeUserID string) ([]string, error)
}

// PresenceFanout computes the audience of a presence change and delivers
// presence:update to each recipient's user room, at most once per call.
type PresenceFanout struct {
	log    *slog.Logger
	graph  SocialGraph
	router *Router
}

// NewPresenceFanout constructs the presence fan-out engine.
func NewPresenceFanout(log *slog.Logger, graph SocialGraph, router *Router) (*PresenceFanout, error) {
	if graph == nil {
		return nil, errors.New("realtime: nil social graph")
	}
	if router == nil {
		return nil, errors.New("realtime: nil router")
	}
	if log == nil {
		log = slog.Default()
	}
	return &PresenceFanout{log: log, graph: graph, router: router}, nil
}

// Broadcast delivers {userID, status} to self, every accepted friend, and
// every conversation co-member, deduplicated. Set semantics guarantee a user
// who is both a friend and a co-member receives the event exactly once.
//
// A store failure aborts this call only; the status write that triggered it
// stays committed.
func (f *PresenceFanout) Broadcast(ctx context.Context, userID, status string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("realtime: empty user id")
	}
	if !ValidStatus(status) {
		return fmt.Errorf("realtime: invalid status %q", status)
	}

	recipients := map[string]struct{}{userID: {}}

	friends, err := f.graph.ListAcceptedFriends(ctx, userID)
	if err != nil {
		return fmt.Errorf("list friends: %w", err)
	}
	for _, edge := range friends {
		if edge.AID == userID {
			recipients[edge.BID] = struct{}{}
		} else {
			recipients[edge.AID] = struct{}{}
		}
	}

	memberships, err := f.graph.ListMemberships(ctx, userID)
	if err != nil {
		return fmt.Errorf("list memberships: %w", err)
	}
	if len(memberships) > 0 {
		others, err := f.graph.ListOtherMembers(ctx, memberships, userID)
		if err != nil {
			return fmt.Errorf("list co-members: %w", err)
		}
		for _, other := range others {
			recipients[other] = struct{}{}
		}
	}

	metricFanoutRecipients.Observe(float64(len(recipients)))

	// Stable order keeps logs and tests deterministic; recipients that are
	// not connected simply receive nothing.
	ordered := make([]string, 0, len(recipients))
	for id := range recipients {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	payload := v1.PresenceUpdatePayload{UserID: userID, Status: status}
	for _, recipient := range ordered {
		f.router.NotifyPresence(recipient, payload)
	}

	f.log.Debug("presence.fanout", "user_id", userID, "status", status, "recipients", len(ordered))
	return nil
}
