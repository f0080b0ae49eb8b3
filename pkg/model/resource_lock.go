package model

import "time"

// ResourceLock is an advisory lock document serializing approvals of one
// resource. Only the owner token that created it may release it; an expired
// lock may be taken over.
type ResourceLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func ResourceLockID(resourceID string) string {
	return "resource_lock_" + resourceID
}
