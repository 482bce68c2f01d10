// pkg/session/service.go
package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/joeydtaylor/steeze-federate/pkg/audit"
	"github.com/joeydtaylor/steeze-federate/pkg/catalog"
	"github.com/joeydtaylor/steeze-federate/pkg/federation"
	"github.com/joeydtaylor/steeze-federate/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-federate/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-federate/pkg/sessioncache"
)

// ArtifactMinter exchanges credentials for a redirect URL.
type ArtifactMinter interface {
	Mint(ctx context.Context, creds federation.Credentials, key catalog.ProductKey) (string, error)
}

// Cache is the slice of the session store the service needs.
type Cache interface {
	GetValid(ctx context.Context, compositeKey string) (*sessioncache.Artifact, error)
	Put(ctx context.Context, art *sessioncache.Artifact) error
	InvalidateAll(ctx context.Context, subject string, knownKeys []catalog.ProductKey) int
}

// KeyLister enumerates the known product key set.
type KeyLister interface {
	Keys(ctx context.Context) ([]catalog.ProductKey, error)
}

// Service orchestrates the read-through issuance path: cache hit returns
// the stored artifact, miss runs broker → minter → cache write.
type Service struct {
	broker  federation.Broker
	minter  ArtifactMinter
	cache   Cache
	keys    KeyLister
	emitter audit.Emitter
	log     *zap.Logger

	durationSeconds int32
	marginSeconds   int64

	now func() time.Time
}

// NewService wires the orchestrator.
func NewService(
	broker federation.Broker,
	minter ArtifactMinter,
	cache Cache,
	keys KeyLister,
	emitter audit.Emitter,
	log *zap.Logger,
	durationSeconds int32,
	marginSeconds int64,
) *Service {
	return &Service{
		broker:          broker,
		minter:          minter,
		cache:           cache,
		keys:            keys,
		emitter:         emitter,
		log:             log,
		durationSeconds: durationSeconds,
		marginSeconds:   marginSeconds,
		now:             time.Now,
	}
}

// GetOrMint returns the caller's live artifact for the product, minting
// and caching a new one on miss. Two concurrent misses may both mint and
// both write; the second write wins and both artifacts are equally valid.
func (s *Service) GetOrMint(ctx context.Context, identity auth.Identity, key catalog.ProductKey) (*sessioncache.Artifact, error) {
	compositeKey := sessioncache.CompositeKey(identity.Subject, key)

	art, err := s.cache.GetValid(ctx, compositeKey)
	if err != nil {
		return nil, err
	}
	if art != nil {
		metrics.SessionCacheHits.Inc()
		return art, nil
	}

	creds, err := s.broker.Assume(ctx, identity)
	if err != nil {
		return nil, err
	}

	federationURL, err := s.minter.Mint(ctx, creds, key)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	art = &sessioncache.Artifact{
		CompositeKey:    compositeKey,
		FederationURL:   federationURL,
		// The artifact's validity window must never outlive the
		// credentials it fronts.
		ExpiresAt:       now + int64(s.durationSeconds) - s.marginSeconds,
		SubjectUsername: identity.Username,
		ProductKey:      key,
		CreatedAt:       now,
		LastAccessedAt:  now,
	}

	if err := s.cache.Put(ctx, art); err != nil {
		// The mint succeeded; an uncached artifact is still valid.
		s.log.Warn("session cache write failed",
			zap.String("operation", "session.put"),
			zap.String("subject", identity.Subject),
			zap.Error(err),
		)
	}

	metrics.SessionsMinted.Inc()
	if err := s.emitter.Emit(ctx, audit.NewEvent(audit.EventSessionIssued, identity, key)); err != nil {
		s.log.Warn("audit emit failed", zap.String("operation", "session.issue"), zap.Error(err))
	}

	return art, nil
}

// Terminate removes the caller's own cached sessions across the known
// product set. Not a full revoke: delegated credentials stay valid until
// expiry.
func (s *Service) Terminate(ctx context.Context, identity auth.Identity) (int, error) {
	keys, err := s.keys.Keys(ctx)
	if err != nil {
		return 0, err
	}

	removed := s.cache.InvalidateAll(ctx, identity.Subject, keys)
	metrics.SessionsInvalidated.Add(float64(removed))

	if err := s.emitter.Emit(ctx, audit.NewEvent(audit.EventSessionTerminated, identity, "")); err != nil {
		s.log.Warn("audit emit failed", zap.String("operation", "session.terminate"), zap.Error(err))
	}
	return removed, nil
}
