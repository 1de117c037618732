package shellherd

import (
	"github.com/virtengine/shellherd/internal/bootstrap"
	"github.com/virtengine/shellherd/internal/interp"
	"github.com/virtengine/shellherd/internal/proc"
)

// Process is a managed interpreter subprocess handle. At most one command
// may be in flight against a Process at a time; the engine enforces this
// with a per-process execution lock.
type Process = proc.Process

// BootstrapResult summarizes one capability bootstrap attempt.
type BootstrapResult = bootstrap.Result

// BootstrapStrategy is one ordered capability activation attempt.
type BootstrapStrategy = bootstrap.Strategy

// InterpreterFlavor classifies an interpreter executable.
type InterpreterFlavor = interp.Flavor

// Interpreter flavors.
const (
	FlavorPowerShell = interp.FlavorPowerShell
	FlavorPosix      = interp.FlavorPosix
	FlavorUnknown    = interp.FlavorUnknown
)

// BypassVariant is the synthetic capability variant recorded when
// bootstrap is bypassed.
const BypassVariant = bootstrap.BypassVariant
