// pkg/audit/relay.go
package audit

// Relay-backed emitter implemented with Electrician builder primitives.
// Internals are hidden: no builder.* types are stored on the struct.

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strings"

	"github.com/joeydtaylor/electrician/pkg/builder"
	"go.uber.org/fx"

	"github.com/joeydtaylor/steeze-federate/pkg/codec"
)

type relayEmitter struct {
	submit func(context.Context, []byte) error // captures wire.Submit
}

func (r *relayEmitter) Emit(ctx context.Context, ev Event) error {
	b, err := codec.JSONStrict.Marshal(ev)
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}
	return r.submit(ctx, b)
}

// NewEmitterFromEnv returns a relay-backed Emitter. It expects:
//
//	AUDIT_RELAY_TARGET        = "host:port[,host2:port2]"  (required)
//
// Optional TLS (off by default):
//
//	AUDIT_RELAY_TLS_ENABLE    = "true" | "false"
//	AUDIT_RELAY_TLS_CRT       = path (default: keys/tls/client.crt)
//	AUDIT_RELAY_TLS_KEY       = path (default: keys/tls/client.key)
//	AUDIT_RELAY_TLS_CA        = path (default: keys/tls/ca.crt)
//
// If AUDIT_RELAY_TARGET is absent, events are discarded.
func NewEmitterFromEnv() (Emitter, error) {
	raw := strings.TrimSpace(os.Getenv("AUDIT_RELAY_TARGET"))
	if raw == "" {
		return noopEmitter{}, nil
	}
	targets := strings.Split(raw, ",")

	useTLS := strings.EqualFold(os.Getenv("AUDIT_RELAY_TLS_ENABLE"), "true")
	tlsCrt := envOr("AUDIT_RELAY_TLS_CRT", "keys/tls/client.crt")
	tlsKey := envOr("AUDIT_RELAY_TLS_KEY", "keys/tls/client.key")
	tlsCA := envOr("AUDIT_RELAY_TLS_CA", "keys/tls/ca.crt")

	logger := builder.NewLogger(builder.LoggerWithDevelopment(true))

	// Build internals (not stored on the struct; captured by closures).
	ctx := context.Background()
	wire := builder.NewWire[[]byte](ctx, builder.WireWithLogger[[]byte](logger))

	tlsCfg := builder.NewTlsClientConfig(
		useTLS,
		tlsCrt, tlsKey, tlsCA,
		tls.VersionTLS13, tls.VersionTLS13,
	)

	relay := builder.NewForwardRelay[[]byte](
		ctx,
		builder.ForwardRelayWithLogger[[]byte](logger),
		builder.ForwardRelayWithTarget[[]byte](targets...),
		builder.ForwardRelayWithTLSConfig[[]byte](tlsCfg),
		builder.ForwardRelayWithInput(wire),
	)

	if err := wire.Start(ctx); err != nil {
		return nil, fmt.Errorf("audit: wire start: %w", err)
	}
	if err := relay.Start(ctx); err != nil {
		return nil, fmt.Errorf("audit: relay start: %w", err)
	}

	return &relayEmitter{
		submit: func(ctx context.Context, b []byte) error { return wire.Submit(ctx, b) },
	}, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

var Module = fx.Options(
	fx.Provide(NewEmitterFromEnv),
)
