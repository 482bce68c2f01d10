// bundlefx/bundlefx.go
package bundlefx

import (
	"go.uber.org/fx"

	"github.com/joeydtaylor/steeze-federate/pkg/audit"
	"github.com/joeydtaylor/steeze-federate/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-federate/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-federate/pkg/middleware/metrics"
)

// Module provided to fx
var Module = fx.Options(
	auth.Module,
	logger.Module,
	metrics.Module,
	audit.Module,
)
