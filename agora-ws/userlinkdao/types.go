package userlinkdao

import "time"

// Link is a weak reference from an authenticated user to one of their live
// connections. A user may hold several simultaneously (multiple tabs or
// devices). The TTL mirrors the owning connection's.
//
// The table also carries a ConnectionIndex GSI keyed on sk, so the reaper can
// find every link for a dead connection without knowing the user.
type Link struct {
	UserID       string `dynamodbav:"pk" ddb:"hash"`
	ConnectionID string `dynamodbav:"sk" ddb:"range"`
	CreatedAt    int64  `dynamodbav:"created_at"`
	TTL          int64  `dynamodbav:"ttl"`
}

// Expired reports whether the link's TTL watermark has passed.
func (l Link) Expired(now time.Time) bool {
	return l.TTL != 0 && l.TTL <= now.Unix()
}
