package connectiondao

import "time"

// Connection represents a live WebSocket connection stored in DynamoDB.
// The record exists iff the transport believes the session is open; an
// expired TTL means the connection must be treated as gone even before
// DynamoDB physically removes the item.
type Connection struct {
	ConnectionID string `dynamodbav:"pk" ddb:"hash"`
	Endpoint     string `dynamodbav:"endpoint"`
	UserID       string `dynamodbav:"user_id,omitempty"`
	ConnectedAt  int64  `dynamodbav:"connected_at"`
	LastSeen     int64  `dynamodbav:"last_seen"`
	TTL          int64  `dynamodbav:"ttl"`
}

// Expired reports whether the record's TTL watermark has passed.
func (c Connection) Expired(now time.Time) bool {
	return c.TTL != 0 && c.TTL <= now.Unix()
}
