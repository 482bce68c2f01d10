// pkg/revocation/engine.go
package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joeydtaylor/steeze-federate/pkg/catalog"
	"github.com/joeydtaylor/steeze-federate/pkg/middleware/auth"
)

// ErrRevocation means the upstream policy write failed; nothing after it
// was attempted and the caller should retry the whole revoke.
var ErrRevocation = errors.New("revocation: policy write failed")

// PolicyAttacher installs a credential cutoff on the delegating role.
type PolicyAttacher interface {
	AttachRevokeAll(ctx context.Context, cutoff time.Time) error
}

// CachePurger sweeps a subject's cached artifacts.
type CachePurger interface {
	InvalidateAll(ctx context.Context, subject string, knownKeys []catalog.ProductKey) int
}

// KeyLister enumerates the known product key set.
type KeyLister interface {
	Keys(ctx context.Context) ([]catalog.ProductKey, error)
}

// SignOuter terminates a provider-side session for a bearer credential.
type SignOuter interface {
	SignOut(ctx context.Context, bearer string) error
}

// StepResult records the outcome of one best-effort follow-up step so
// partial failure is observable instead of swallowed.
type StepResult struct {
	Step string
	Err  error
}

// Engine invalidates all outstanding delegated credentials for an
// identity: a role-wide issued-before cutoff upstream, then a cache purge.
type Engine struct {
	attacher PolicyAttacher
	cache    CachePurger
	keys     KeyLister
	signout  SignOuter
	delay    time.Duration
	log      *zap.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

// NewEngine builds a revocation engine. delay is the fixed post-write
// propagation wait before the upstream deny is assumed effective.
func NewEngine(attacher PolicyAttacher, cache CachePurger, keys KeyLister, signout SignOuter, delay time.Duration, log *zap.Logger) *Engine {
	return &Engine{
		attacher: attacher,
		cache:    cache,
		keys:     keys,
		signout:  signout,
		delay:    delay,
		log:      log,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// RevokeAll installs the issued-before-now cutoff and purges the caller's
// cached artifacts. If the policy write fails the purge is NOT attempted:
// a stale cached artifact is strictly worse when the upstream deny could
// not be installed, so the failure surfaces instead of a half-revoked
// state that looks successful. Follow-up steps (purge, sign-out) are
// best-effort and reported per step.
func (e *Engine) RevokeAll(ctx context.Context, identity auth.Identity, bearer string) (time.Time, []StepResult, error) {
	cutoff := e.now()

	if err := e.attacher.AttachRevokeAll(ctx, cutoff); err != nil {
		return time.Time{}, nil, fmt.Errorf("%w: %s", ErrRevocation, err)
	}

	// The deny takes a moment to propagate upstream; callers must not
	// assume instantaneous effect.
	e.sleep(e.delay)

	steps := make([]StepResult, 0, 2)
	steps = append(steps, e.purgeStep(ctx, identity))
	if bearer != "" {
		steps = append(steps, e.signOutStep(ctx, bearer))
	}

	for _, st := range steps {
		if st.Err != nil {
			e.log.Warn("revocation follow-up failed",
				zap.String("operation", "revocation."+st.Step),
				zap.String("subject", identity.Subject),
				zap.Error(st.Err),
			)
		}
	}

	return cutoff, steps, nil
}

func (e *Engine) purgeStep(ctx context.Context, identity auth.Identity) StepResult {
	keys, err := e.keys.Keys(ctx)
	if err != nil {
		return StepResult{Step: "cachePurge", Err: err}
	}
	e.cache.InvalidateAll(ctx, identity.Subject, keys)
	return StepResult{Step: "cachePurge"}
}

func (e *Engine) signOutStep(ctx context.Context, bearer string) StepResult {
	return StepResult{Step: "providerSignOut", Err: e.signout.SignOut(ctx, bearer)}
}
