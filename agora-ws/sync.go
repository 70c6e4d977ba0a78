package agoraws

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/agora-forum/agora-go-utils/agora-ws/postdao"
	"github.com/rs/zerolog"
)

// PostSource is the slice of the durable record store the sync engine reads.
// Both queries are scoped to one discussion and strictly newer than the
// watermark.
type PostSource interface {
	CreatedSince(ctx context.Context, discussionID string, since time.Time) ([]postdao.Post, error)
	EditedSince(ctx context.Context, discussionID string, since time.Time) ([]postdao.Post, error)
}

// DomainEvent is one reconstructed change to a discussion, ordered by its
// governing timestamp: creation time for creates, update time otherwise.
type DomainEvent struct {
	Action       string
	DiscussionID string
	Post         postdao.Post
	At           time.Time
}

// Envelope renders the event as an outbound push envelope.
func (e DomainEvent) Envelope() (Envelope, error) {
	data, err := json.Marshal(e.Post)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshalling %v event for post %v: %w", e.Action, e.Post.PostID, err)
	}
	return Envelope{
		Action:    e.Action,
		Data:      data,
		Timestamp: e.At.UTC().Format(time.RFC3339),
		UserID:    e.Post.UserID,
	}, nil
}

// Reconciler computes the ordered set of domain events a client missed while
// disconnected.
type Reconciler struct {
	Posts  PostSource
	Logger zerolog.Logger
}

// Reconcile returns every event in the discussion strictly newer than the
// watermark, sorted ascending by governing timestamp. A nil watermark means
// the client has no prior state and nothing to miss. The operation is
// read-only; a query failure is logged and surfaces as an empty result, which
// callers must treat as "nothing missed or reconciliation degraded".
func (r *Reconciler) Reconcile(ctx context.Context, discussionID, userID string, since *time.Time) []DomainEvent {
	if since == nil {
		return nil
	}

	logger := r.Logger.With().
		Str("discussion_id", discussionID).
		Str("user_id", userID).
		Time("since", *since).
		Logger()

	created, err := r.Posts.CreatedSince(ctx, discussionID, *since)
	if err != nil {
		logger.Error().Err(err).Msg("failed to query created posts, returning degraded sync result")
		return nil
	}

	edited, err := r.Posts.EditedSince(ctx, discussionID, *since)
	if err != nil {
		logger.Error().Err(err).Msg("failed to query edited posts, returning degraded sync result")
		return nil
	}

	events := make([]DomainEvent, 0, len(created)+len(edited))
	for _, post := range created {
		events = append(events, DomainEvent{
			Action:       ActionNewPost,
			DiscussionID: discussionID,
			Post:         post,
			At:           post.CreatedTime(),
		})
	}
	for _, post := range edited {
		events = append(events, DomainEvent{
			Action:       editAction(post),
			DiscussionID: discussionID,
			Post:         post,
			At:           post.UpdatedTime(),
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].At.Before(events[j].At)
	})

	logger.Debug().Int("events", len(events)).Msg("reconciled missed messages")
	return events
}

// editAction classifies an edited post, with deleted and hidden taking
// precedence over a generic update.
func editAction(post postdao.Post) string {
	switch {
	case post.Deleted:
		return ActionPostDeleted
	case post.Hidden:
		return ActionVisibilityChanged
	default:
		return ActionPostUpdated
	}
}
