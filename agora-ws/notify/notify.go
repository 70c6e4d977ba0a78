// Package notify is the boundary the CRUD layer calls after a domain write
// commits. Every helper is fire-and-forget: publish failures are logged and
// swallowed so presence bookkeeping can never fail a post create, update, or
// delete.
package notify

import (
	"context"

	agoraws "github.com/agora-forum/agora-go-utils/agora-ws"
	"github.com/agora-forum/agora-go-utils/agora-ws/postdao"
	"github.com/agora-forum/agora-go-utils/agora-ws/publish"
	"github.com/rs/zerolog"
)

// Notifier publishes post-mutation events to the realtime stream.
type Notifier struct {
	Publisher *publish.Publisher
	Logger    zerolog.Logger
}

// PostCreated announces a newly committed post to its discussion.
func (n *Notifier) PostCreated(ctx context.Context, post postdao.Post) {
	n.send(ctx, agoraws.ActionNewPost, post)
}

// PostUpdated announces an edit.
func (n *Notifier) PostUpdated(ctx context.Context, post postdao.Post) {
	n.send(ctx, agoraws.ActionPostUpdated, post)
}

// PostDeleted announces a soft-delete.
func (n *Notifier) PostDeleted(ctx context.Context, post postdao.Post) {
	n.send(ctx, agoraws.ActionPostDeleted, post)
}

// ReactionChanged announces a reaction add or remove.
func (n *Notifier) ReactionChanged(ctx context.Context, post postdao.Post) {
	n.send(ctx, agoraws.ActionReactionChanged, post)
}

// VisibilityChanged announces a moderation visibility change.
func (n *Notifier) VisibilityChanged(ctx context.Context, post postdao.Post) {
	n.send(ctx, agoraws.ActionVisibilityChanged, post)
}

func (n *Notifier) send(ctx context.Context, action string, post postdao.Post) {
	err := n.Publisher.Send(ctx, post.DiscussionID, action, post, post.UserID, "")
	if err != nil {
		n.Logger.Error().Err(err).
			Str("action", action).
			Str("discussion_id", post.DiscussionID).
			Str("post_id", post.PostID).
			Msg("failed to publish realtime event")
	}
}
