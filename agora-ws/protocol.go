package agoraws

import (
	"encoding/json"
	"fmt"
	"time"
)

// Client -> server actions carried in the body of a $default route message.
const (
	ActionJoinDiscussion  = "join_discussion"
	ActionLeaveDiscussion = "leave_discussion"
	ActionBroadcastPost   = "broadcast_post"
	ActionTypingStart     = "typing_start"
	ActionTypingStop      = "typing_stop"
	ActionSyncRequest     = "sync_request"
	ActionPing            = "ping"
)

// Server -> client actions.
const (
	ActionNewPost           = "new_post"
	ActionPostUpdated       = "post_updated"
	ActionPostDeleted       = "post_deleted"
	ActionReactionChanged   = "post_reaction_changed"
	ActionVisibilityChanged = "post_visibility_changed"
	ActionSyncResponse      = "sync_response"
	ActionJoinAck           = "join_ack"
	ActionLeaveAck          = "leave_ack"
	ActionPong              = "pong"
	ActionError             = "error"
)

// ClientMessage is a message received on the $default route.
type ClientMessage struct {
	Action       string          `json:"action"`
	DiscussionID string          `json:"discussionId,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// ParseMessage parses a client message from a JSON string.
func ParseMessage(body string) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return nil, fmt.Errorf("invalid client message: %w", err)
	}
	if msg.Action == "" {
		return nil, fmt.Errorf("missing message action")
	}
	return &msg, nil
}

// Envelope is the unit of fan-out pushed to subscribers.
type Envelope struct {
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
	UserID    string          `json:"userId,omitempty"`
}

// NewEnvelope builds an envelope with the given payload, stamped now.
func NewEnvelope(action string, payload interface{}, userID string) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshalling %v payload: %w", action, err)
	}
	return Envelope{
		Action:    action,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		UserID:    userID,
	}, nil
}

// RawEnvelope builds an envelope around an already-encoded payload.
func RawEnvelope(action string, data json.RawMessage, userID string) Envelope {
	return Envelope{
		Action:    action,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		UserID:    userID,
	}
}

// Marshal encodes the envelope for the wire.
func (e Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshalling %v envelope: %w", e.Action, err)
	}
	return data, nil
}

// PongMessage returns a pong envelope.
func PongMessage() []byte {
	b, _ := json.Marshal(Envelope{
		Action:    ActionPong,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return b
}

// AckMessage returns an acknowledgement envelope for a join/leave request.
func AckMessage(action, discussionID string) []byte {
	data, _ := json.Marshal(map[string]string{"discussionId": discussionID})
	b, _ := json.Marshal(Envelope{
		Action:    action,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return b
}

// ErrorMessage returns an error envelope with the given message.
func ErrorMessage(errMsg string) []byte {
	data, _ := json.Marshal(map[string]string{"message": errMsg})
	b, _ := json.Marshal(Envelope{
		Action:    ActionError,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return b
}

// SyncRequest is the payload of a sync_request message.
type SyncRequest struct {
	LastSyncTimestamp string `json:"lastSyncTimestamp,omitempty"`
}

// Since parses the client watermark. A missing watermark returns nil.
func (r SyncRequest) Since() (*time.Time, error) {
	if r.LastSyncTimestamp == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, r.LastSyncTimestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid lastSyncTimestamp %v: %w", r.LastSyncTimestamp, err)
	}
	return &t, nil
}

// SyncResponseMessage returns a sync_response envelope carrying the missed
// messages as an ordered batch.
func SyncResponseMessage(events []DomainEvent) ([]byte, error) {
	missed := make([]Envelope, 0, len(events))
	for _, event := range events {
		envelope, err := event.Envelope()
		if err != nil {
			return nil, err
		}
		missed = append(missed, envelope)
	}

	data, err := json.Marshal(map[string]interface{}{"missedMessages": missed})
	if err != nil {
		return nil, fmt.Errorf("marshalling sync response: %w", err)
	}
	b, err := json.Marshal(Envelope{
		Action:    ActionSyncResponse,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling sync response envelope: %w", err)
	}
	return b, nil
}
