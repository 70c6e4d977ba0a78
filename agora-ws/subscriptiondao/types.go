package subscriptiondao

import "time"

// Subscription represents one direction of a discussion membership. Each
// join stores two items in the same table: (topic#<discussionId>,
// conn#<connectionId>) and its mirror (conn#<connectionId>,
// topic#<discussionId>), so either side resolves with a single query. The
// pair is written and removed by the same call, without a transaction; a
// crash between the two writes leaves a bounded inconsistency that the
// reaper resolves when the connection is eventually cleaned up.
type Subscription struct {
	HashKey      string `dynamodbav:"pk" ddb:"hash"`
	RangeKey     string `dynamodbav:"sk" ddb:"range"`
	DiscussionID string `dynamodbav:"discussion_id"`
	ConnectionID string `dynamodbav:"connection_id"`
	UserID       string `dynamodbav:"user_id,omitempty"`
	Endpoint     string `dynamodbav:"endpoint"`
	JoinedAt     int64  `dynamodbav:"joined_at"`
	TTL          int64  `dynamodbav:"ttl"`
}

// Expired reports whether the record's TTL watermark has passed.
func (s Subscription) Expired(now time.Time) bool {
	return s.TTL != 0 && s.TTL <= now.Unix()
}

// TopicKey returns the partition key for the topic -> connection direction.
func TopicKey(discussionID string) string {
	return "topic#" + discussionID
}

// ConnectionKey returns the partition key for the connection -> topic
// direction.
func ConnectionKey(connectionID string) string {
	return "conn#" + connectionID
}
