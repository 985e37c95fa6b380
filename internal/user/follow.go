package user

import (
	"context"
	"database/sql"
	"errors"
)

// FollowStore is the slice of the repository the mutator needs.
type FollowStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	ToggleFollow(ctx context.Context, actorID, targetID string) (FollowChange, error)
}

// FollowMutator toggles the directed follow edge between two users.
type FollowMutator struct {
	store FollowStore
}

func NewFollowMutator(store FollowStore) *FollowMutator {
	return &FollowMutator{store: store}
}

// Toggle follows target if the edge is absent and unfollows otherwise.
// Self-edges are rejected before any store access.
func (m *FollowMutator) Toggle(ctx context.Context, actorID, targetID string) (FollowChange, error) {
	if actorID == targetID {
		return FollowChange{}, ErrSelfFollow
	}

	for _, id := range []string{actorID, targetID} {
		exists, err := m.store.Exists(ctx, id)
		if err != nil {
			return FollowChange{}, err
		}
		if !exists {
			return FollowChange{}, sql.ErrNoRows
		}
	}

	return m.store.ToggleFollow(ctx, actorID, targetID)
}

var (
	ErrSelfFollow = errors.New("cannot follow yourself")

	// ErrPartialFollowUpdate marks a toggle that failed after its first
	// membership write. The transaction rolls back, so no asymmetric edge
	// is left behind, but the fault is reported for operator visibility.
	ErrPartialFollowUpdate = errors.New("follow edge partially updated")
)
