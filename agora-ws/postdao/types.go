package postdao

import "time"

// Post is the durable record store's shape for a discussion post, as read by
// the sync engine. The CRUD layer owns writes; this package only needs the
// fields that drive missed-message reconstruction.
type Post struct {
	PostID       string           `dynamodbav:"pk" ddb:"hash" json:"postId"`
	DiscussionID string           `dynamodbav:"discussion_id" ddb:"gsi_hash:DiscussionIndex" json:"discussionId"`
	UserID       string           `dynamodbav:"user_id" json:"userId"`
	Content      string           `dynamodbav:"content" json:"content"`
	Reactions    map[string]int64 `dynamodbav:"reactions,omitempty" json:"reactions,omitempty"`
	CreatedAt    int64            `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt    int64            `dynamodbav:"updated_at" json:"updatedAt"`
	Deleted      bool             `dynamodbav:"deleted" json:"deleted"`
	Hidden       bool             `dynamodbav:"hidden" json:"hidden"`
}

// CreatedTime returns the creation timestamp. Stored as unix milliseconds.
func (p Post) CreatedTime() time.Time {
	return time.UnixMilli(p.CreatedAt).UTC()
}

// UpdatedTime returns the last-update timestamp.
func (p Post) UpdatedTime() time.Time {
	return time.UnixMilli(p.UpdatedAt).UTC()
}

// Edited reports whether the post has been modified after creation.
func (p Post) Edited() bool {
	return p.UpdatedAt != p.CreatedAt
}
