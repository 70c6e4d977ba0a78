package agoraws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/agora-forum/agora-go-utils/agora-ws/postdao"
	"github.com/tj/assert"
)

func TestParseMessage(t *testing.T) {
	t.Run("join", func(t *testing.T) {
		msg, err := ParseMessage(`{"action":"join_discussion","discussionId":"d-1"}`)
		assert.NoError(t, err)
		assert.Equal(t, ActionJoinDiscussion, msg.Action)
		assert.Equal(t, "d-1", msg.DiscussionID)
	})

	t.Run("broadcast with payload", func(t *testing.T) {
		msg, err := ParseMessage(`{"action":"broadcast_post","discussionId":"d-1","data":{"content":"hello"}}`)
		assert.NoError(t, err)
		assert.Equal(t, ActionBroadcastPost, msg.Action)
		assert.JSONEq(t, `{"content":"hello"}`, string(msg.Data))
	})

	t.Run("missing action", func(t *testing.T) {
		_, err := ParseMessage(`{"discussionId":"d-1"}`)
		assert.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseMessage(`ping`)
		assert.Error(t, err)
	})
}

func TestEnvelope(t *testing.T) {
	t.Run("NewEnvelope stamps now", func(t *testing.T) {
		envelope, err := NewEnvelope(ActionNewPost, map[string]string{"postId": "p-1"}, "user-1")
		assert.NoError(t, err)
		assert.Equal(t, ActionNewPost, envelope.Action)
		assert.Equal(t, "user-1", envelope.UserID)

		ts, err := time.Parse(time.RFC3339, envelope.Timestamp)
		assert.NoError(t, err)
		assert.WithinDuration(t, time.Now(), ts, time.Minute)
	})

	t.Run("marshal round trip", func(t *testing.T) {
		envelope := RawEnvelope(ActionTypingStart, json.RawMessage(`{"x":1}`), "user-1")
		data, err := envelope.Marshal()
		assert.NoError(t, err)

		var decoded Envelope
		assert.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, envelope.Action, decoded.Action)
		assert.Equal(t, envelope.UserID, decoded.UserID)
		assert.JSONEq(t, `{"x":1}`, string(decoded.Data))
	})

	t.Run("anonymous omits userId", func(t *testing.T) {
		envelope := RawEnvelope(ActionTypingStart, nil, "")
		data, err := envelope.Marshal()
		assert.NoError(t, err)
		assert.NotContains(t, string(data), "userId")
	})
}

func TestControlMessages(t *testing.T) {
	t.Run("pong", func(t *testing.T) {
		var envelope Envelope
		assert.NoError(t, json.Unmarshal(PongMessage(), &envelope))
		assert.Equal(t, ActionPong, envelope.Action)
	})

	t.Run("join ack", func(t *testing.T) {
		var envelope Envelope
		assert.NoError(t, json.Unmarshal(AckMessage(ActionJoinAck, "d-1"), &envelope))
		assert.Equal(t, ActionJoinAck, envelope.Action)
		assert.JSONEq(t, `{"discussionId":"d-1"}`, string(envelope.Data))
	})

	t.Run("error", func(t *testing.T) {
		var envelope Envelope
		assert.NoError(t, json.Unmarshal(ErrorMessage("missing discussionId"), &envelope))
		assert.Equal(t, ActionError, envelope.Action)
		assert.JSONEq(t, `{"message":"missing discussionId"}`, string(envelope.Data))
	})
}

func TestSyncRequest(t *testing.T) {
	t.Run("missing watermark", func(t *testing.T) {
		since, err := SyncRequest{}.Since()
		assert.NoError(t, err)
		assert.Nil(t, since)
	})

	t.Run("valid watermark", func(t *testing.T) {
		since, err := SyncRequest{LastSyncTimestamp: "2024-05-01T12:30:00Z"}.Since()
		assert.NoError(t, err)
		assert.NotNil(t, since)
		assert.Equal(t, 2024, since.Year())
	})

	t.Run("garbage watermark", func(t *testing.T) {
		_, err := SyncRequest{LastSyncTimestamp: "yesterday"}.Since()
		assert.Error(t, err)
	})
}

func TestSyncResponseMessage(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	events := []DomainEvent{
		{
			Action:       ActionNewPost,
			DiscussionID: "d-1",
			Post:         postdao.Post{PostID: "p-1", DiscussionID: "d-1", UserID: "user-1"},
			At:           at,
		},
		{
			Action:       ActionPostUpdated,
			DiscussionID: "d-1",
			Post:         postdao.Post{PostID: "p-2", DiscussionID: "d-1"},
			At:           at.Add(time.Minute),
		},
	}

	data, err := SyncResponseMessage(events)
	assert.NoError(t, err)

	var envelope Envelope
	assert.NoError(t, json.Unmarshal(data, &envelope))
	assert.Equal(t, ActionSyncResponse, envelope.Action)

	var payload struct {
		MissedMessages []Envelope `json:"missedMessages"`
	}
	assert.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Len(t, payload.MissedMessages, 2)
	assert.Equal(t, ActionNewPost, payload.MissedMessages[0].Action)
	assert.Equal(t, "user-1", payload.MissedMessages[0].UserID)
	assert.Equal(t, "2024-05-01T12:00:00Z", payload.MissedMessages[0].Timestamp)
	assert.Equal(t, ActionPostUpdated, payload.MissedMessages[1].Action)

	t.Run("empty batch still answers", func(t *testing.T) {
		data, err := SyncResponseMessage(nil)
		assert.NoError(t, err)

		var envelope Envelope
		assert.NoError(t, json.Unmarshal(data, &envelope))
		assert.Equal(t, ActionSyncResponse, envelope.Action)
		assert.JSONEq(t, `{"missedMessages":[]}`, string(envelope.Data))
	})
}
