package agoraws

import (
	"context"
	"errors"

	"github.com/agora-forum/agora-go-utils/agora-ws/connectiondao"
	"github.com/agora-forum/agora-go-utils/agora-ws/subscriptiondao"
	"github.com/agora-forum/agora-go-utils/agora-ws/userlinkdao"
	"github.com/rs/zerolog"
)

// Reaper removes every registry and index record for a connection once it is
// known dead: explicit disconnect, a permanently failed delivery, or the
// scheduled orphan sweep.
type Reaper struct {
	Connections *connectiondao.DAO
	Links       *userlinkdao.DAO
	Subs        *subscriptiondao.DAO
	Logger      zerolog.Logger
}

// Reap deletes the connection record, its user links, and its subscriptions.
// When a discussion id is supplied only that one subscription pair is
// dropped; otherwise every pair referencing the connection goes. Repeated
// reaps of an already-gone connection succeed silently.
func (r *Reaper) Reap(ctx context.Context, connectionID, discussionID string) {
	logger := r.Logger.With().Str("connection_id", connectionID).Logger()

	if discussionID != "" {
		if err := r.Subs.Leave(ctx, discussionID, connectionID); err != nil {
			logger.Error().Err(err).Str("discussion_id", discussionID).Msg("failed to drop subscription for dead connection")
		}
	} else {
		if err := r.Subs.DeleteByConnection(ctx, connectionID); err != nil {
			logger.Error().Err(err).Msg("failed to drop subscriptions for dead connection")
		}
	}

	if err := r.Links.DeleteByConnection(ctx, connectionID); err != nil {
		logger.Error().Err(err).Msg("failed to drop user links for dead connection")
	}

	if err := r.Connections.Delete(ctx, connectionID); err != nil {
		logger.Error().Err(err).Msg("failed to delete dead connection")
	}
}

// Sweep finds connections still referenced by links or subscriptions whose
// registry record is gone or expired, and reaps them. Returns the number of
// connections reaped. Driven by the scheduled cron Lambda; DynamoDB's own TTL
// expiry handles the common case lazily, the sweep closes the gap left by
// crashes between pair writes.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	subConns, err := r.Subs.AllConnectionIDs(ctx)
	if err != nil {
		return 0, err
	}
	linkConns, err := r.Links.AllConnectionIDs(ctx)
	if err != nil {
		return 0, err
	}

	seen := map[string]bool{}
	for _, id := range append(subConns, linkConns...) {
		seen[id] = true
	}

	reaped := 0
	for connectionID := range seen {
		_, err := r.Connections.Get(ctx, connectionID)
		if err == nil {
			continue
		}
		if !errors.Is(err, connectiondao.ErrNotFound) {
			r.Logger.Warn().Err(err).Str("connection_id", connectionID).Msg("skipping connection, registry lookup failed")
			continue
		}
		r.Reap(ctx, connectionID, "")
		reaped++
	}

	if reaped > 0 {
		r.Logger.Info().Int("reaped", reaped).Msg("swept orphaned connections")
	}
	return reaped, nil
}
