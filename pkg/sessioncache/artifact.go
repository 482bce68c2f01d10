// pkg/sessioncache/artifact.go
package sessioncache

import (
	"github.com/joeydtaylor/steeze-federate/pkg/catalog"
)

// Artifact is one cached federation session record. At most one live
// artifact exists per composite key; writes overwrite in place. Owned
// exclusively by the Store; nothing else mutates stored records.
type Artifact struct {
	CompositeKey    string             `json:"compositeKey"`
	FederationURL   string             `json:"federationUrl"`
	ExpiresAt       int64              `json:"expiresAt"` // epoch seconds
	SubjectUsername string             `json:"subjectUsername"`
	ProductKey      catalog.ProductKey `json:"productKey"`
	CreatedAt       int64              `json:"createdAt"`
	LastAccessedAt  int64              `json:"lastAccessedAt"`
}

// CompositeKey joins an identity subject and product key into the cache key.
func CompositeKey(subject string, key catalog.ProductKey) string {
	return subject + "#" + string(key)
}
