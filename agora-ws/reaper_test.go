package agoraws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agora-forum/agora-go-utils/agora-ws/connectiondao"
	"github.com/agora-forum/agora-go-utils/agora-ws/userlinkdao"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

func TestReap(t *testing.T) {
	withStores(t, func(ctx context.Context, s stores) {
		reaper := &Reaper{
			Connections: s.Connections,
			Links:       s.Links,
			Subs:        s.Subs,
			Logger:      zerolog.Nop(),
		}

		now := time.Now()
		expires := now.Add(time.Hour)
		err := s.Connections.Put(ctx, connectiondao.Connection{
			ConnectionID: "c1",
			Endpoint:     "https://example.com/test",
			UserID:       "user-1",
			ConnectedAt:  now.Unix(),
			LastSeen:     now.Unix(),
			TTL:          expires.Unix(),
		})
		assert.Nil(t, err)
		err = s.Links.Put(ctx, userlinkdao.Link{UserID: "user-1", ConnectionID: "c1", CreatedAt: now.Unix(), TTL: expires.Unix()})
		assert.Nil(t, err)
		err = s.Subs.Join(ctx, "d-1", "c1", "user-1", "https://example.com/test", expires)
		assert.Nil(t, err)
		err = s.Subs.Join(ctx, "d-2", "c1", "user-1", "https://example.com/test", expires)
		assert.Nil(t, err)

		t.Run("scoped to one discussion", func(t *testing.T) {
			reaper.Reap(ctx, "c1", "d-1")

			subs, err := s.Subs.SubscribersOf(ctx, "d-1")
			assert.Nil(t, err)
			assert.Empty(t, subs)

			// registry record and links go with it
			_, err = s.Connections.Get(ctx, "c1")
			assert.True(t, errors.Is(err, connectiondao.ErrNotFound))
		})

		t.Run("full reap clears all discussions", func(t *testing.T) {
			reaper.Reap(ctx, "c1", "")

			subs, err := s.Subs.SubscribersOf(ctx, "d-2")
			assert.Nil(t, err)
			assert.Empty(t, subs)

			topics, err := s.Subs.TopicsForConnection(ctx, "c1")
			assert.Nil(t, err)
			assert.Empty(t, topics)

			ids, err := s.Links.ConnectionsForUser(ctx, "user-1")
			assert.Nil(t, err)
			assert.Empty(t, ids)
		})

		t.Run("reap is idempotent", func(t *testing.T) {
			reaper.Reap(ctx, "c1", "")
			reaper.Reap(ctx, "never-existed", "")
		})
	})
}

func TestSweep(t *testing.T) {
	withStores(t, func(ctx context.Context, s stores) {
		reaper := &Reaper{
			Connections: s.Connections,
			Links:       s.Links,
			Subs:        s.Subs,
			Logger:      zerolog.Nop(),
		}

		now := time.Now()
		expires := now.Add(time.Hour)

		// live connection with full bookkeeping
		err := s.Connections.Put(ctx, connectiondao.Connection{
			ConnectionID: "live",
			Endpoint:     "https://example.com/test",
			ConnectedAt:  now.Unix(),
			LastSeen:     now.Unix(),
			TTL:          expires.Unix(),
		})
		assert.Nil(t, err)
		err = s.Subs.Join(ctx, "d-1", "live", "", "https://example.com/test", expires)
		assert.Nil(t, err)

		// orphaned subscription: registry record never written
		err = s.Subs.Join(ctx, "d-1", "orphan-sub", "", "https://example.com/test", expires)
		assert.Nil(t, err)

		// orphaned link: registry record expired
		err = s.Connections.Put(ctx, connectiondao.Connection{
			ConnectionID: "orphan-link",
			Endpoint:     "https://example.com/test",
			UserID:       "user-1",
			ConnectedAt:  now.Add(-48 * time.Hour).Unix(),
			LastSeen:     now.Add(-48 * time.Hour).Unix(),
			TTL:          now.Add(-24 * time.Hour).Unix(),
		})
		assert.Nil(t, err)
		err = s.Links.Put(ctx, userlinkdao.Link{UserID: "user-1", ConnectionID: "orphan-link", CreatedAt: now.Unix(), TTL: expires.Unix()})
		assert.Nil(t, err)

		reaped, err := reaper.Sweep(ctx)
		assert.Nil(t, err)
		assert.Equal(t, 2, reaped)

		// orphans are gone
		subs, err := s.Subs.SubscribersOf(ctx, "d-1")
		assert.Nil(t, err)
		assert.Len(t, subs, 1)
		assert.Equal(t, "live", subs[0].ConnectionID)

		ids, err := s.Links.ConnectionsForUser(ctx, "user-1")
		assert.Nil(t, err)
		assert.Empty(t, ids)

		// the live connection is untouched
		_, err = s.Connections.Get(ctx, "live")
		assert.Nil(t, err)

		t.Run("sweep of a clean registry reaps nothing", func(t *testing.T) {
			reaped, err := reaper.Sweep(ctx)
			assert.Nil(t, err)
			assert.Equal(t, 0, reaped)
		})
	})
}
