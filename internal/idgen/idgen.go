// Package idgen generates deterministic content-derived identifiers.
//
// An identifier is the entity prefix joined to the first 8 hex characters
// of the SHA-256 digest of the entity's distinguishing fields. Task and
// activity IDs fold in a timestamp; dependency IDs are derived only from
// the two endpoints, so re-adding the same edge reproduces the same ID.
package idgen

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const hashLen = 8

// MaxCollisionRetries bounds the suffix fallback when a generated ID
// already names an existing row.
const MaxCollisionRetries = 100

func hashID(prefix string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return prefix + "-" + hex.EncodeToString(sum[:])[:hashLen]
}

// TaskID derives a task identifier from its title, parent story, and
// creation time.
func TaskID(title, storyID string, t time.Time) string {
	return hashID("task", title, storyID, strconv.FormatInt(t.UnixNano(), 10))
}

// ActivityID derives an activity identifier from its owning task, type,
// and creation time.
func ActivityID(taskID, activityType string, t time.Time) string {
	return hashID("act", taskID, activityType, strconv.FormatInt(t.UnixNano(), 10))
}

// DependencyID derives an edge identifier from its endpoints only.
func DependencyID(taskID, dependsOnID string) string {
	return hashID("dep", taskID, dependsOnID)
}

// WithSuffix appends a collision counter to an identifier.
func WithSuffix(id string, n int) string {
	return id + "-" + strconv.Itoa(n)
}
