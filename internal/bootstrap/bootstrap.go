// Package bootstrap runs the two-phase capability handshake against a
// freshly launched interpreter process: activate the domain automation
// modules, then apply their configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/virtengine/shellherd/internal/proc"
)

// Sentinels searched for as plain substrings in accumulated output.
const (
	// ModulesLoadedSentinel prefixes the resolved capability variant name
	// printed by a successful activation command.
	ModulesLoadedSentinel = "MODULES_LOADED:"

	// ConfigSuccessSentinel is printed by a successful configuration
	// command. Its absence is a soft warning, not a failure, because some
	// settings are best-effort.
	ConfigSuccessSentinel = "CONFIG_SUCCESS"

	// BypassVariant is the synthetic variant recorded when bootstrap is
	// skipped for a process known to be preconfigured.
	BypassVariant = "bypass"
)

// Runner executes one command against a managed process. It is satisfied
// by the engine's executor; the narrow interface keeps bootstrap logic
// testable without a live interpreter.
type Runner interface {
	Run(ctx context.Context, p *proc.Process, command string, timeout time.Duration) (string, error)
}

// Strategy is one ordered activation attempt. Its command must print
// "MODULES_LOADED:<variant>" to stdout on success.
type Strategy struct {
	// Name identifies the capability variant this strategy activates.
	Name string

	// Command is the activation command sent to the interpreter.
	Command string
}

// Result summarizes one bootstrap attempt.
type Result struct {
	Success  bool
	Variant  string
	Message  string
	Warnings []string
	Errors   []string
}

// DefaultStrategies activate the vSphere automation modules: the full
// distribution first, the core-only module as fallback.
var DefaultStrategies = []Strategy{
	{
		Name:    "VMware.PowerCLI",
		Command: `Import-Module VMware.PowerCLI -ErrorAction Stop; Write-Output "MODULES_LOADED:VMware.PowerCLI"`,
	},
	{
		Name:    "VMware.VimAutomation.Core",
		Command: `Import-Module VMware.VimAutomation.Core -ErrorAction Stop; Write-Output "MODULES_LOADED:VMware.VimAutomation.Core"`,
	},
}

// DefaultConfigCommand applies the settings the activated modules need
// before domain commands are issued.
var DefaultConfigCommand = `Set-PowerCLIConfiguration -InvalidCertificateAction Ignore ` +
	`-ParticipateInCEIP $false -Scope Session -Confirm:$false | Out-Null; ` +
	`Write-Output "CONFIG_SUCCESS"`

// Bootstrapper composes the ordered activation strategies and the
// configuration phase into a single orchestrated handshake.
type Bootstrapper struct {
	log           *slog.Logger
	runner        Runner
	strategies    []Strategy
	configCommand string
	timeout       time.Duration
}

// New creates a bootstrapper. Nil strategies and an empty config command
// select the defaults.
func New(
	log *slog.Logger,
	runner Runner,
	strategies []Strategy,
	configCommand string,
	timeout time.Duration,
) *Bootstrapper {
	if strategies == nil {
		strategies = DefaultStrategies
	}

	if configCommand == "" {
		configCommand = DefaultConfigCommand
	}

	return &Bootstrapper{
		log:           log.With("component", "bootstrap"),
		runner:        runner,
		strategies:    strategies,
		configCommand: configCommand,
		timeout:       timeout,
	}
}

// Bootstrap runs the handshake against the process. With bypass set, both
// phases are skipped and the process is marked configured with the
// synthetic bypass variant; callers accept reduced functionality in
// exchange for not paying the bootstrap cost on a preconfigured process.
func (b *Bootstrapper) Bootstrap(ctx context.Context, p *proc.Process, bypass bool) *Result {
	if bypass {
		p.MarkCapability(BypassVariant)
		b.log.Info("Capability bootstrap bypassed", "id", p.ID())

		return &Result{
			Success: true,
			Variant: BypassVariant,
			Message: "capability bootstrap bypassed",
			Warnings: []string{
				"bypass mode: capability assumed preconfigured, functionality may be reduced",
			},
		}
	}

	result := &Result{}

	variant := b.activate(ctx, p, result)
	if variant == "" {
		result.Message = "capability activation failed"
		b.log.Warn("Capability activation failed", "id", p.ID(), "errors", result.Errors)

		return result
	}

	b.configure(ctx, p, result)

	p.MarkCapability(variant)

	result.Success = true
	result.Variant = variant
	result.Message = fmt.Sprintf("capability %s activated", variant)

	b.log.Info("Capability bootstrap complete", "id", p.ID(), "variant", variant)

	return result
}

// activate tries each strategy in order and returns the variant resolved
// from the first MODULES_LOADED sentinel, or "" if none succeeded.
func (b *Bootstrapper) activate(ctx context.Context, p *proc.Process, result *Result) string {
	for _, strategy := range b.strategies {
		b.log.Debug("Trying activation strategy", "id", p.ID(), "strategy", strategy.Name)

		out, err := b.runner.Run(ctx, p, strategy.Command, b.timeout)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", strategy.Name, err))

			continue
		}

		if variant, ok := parseVariant(out); ok {
			return variant
		}

		result.Errors = append(result.Errors,
			fmt.Sprintf("%s: activation produced no %s sentinel", strategy.Name, ModulesLoadedSentinel))
	}

	return ""
}

// configure applies settings for the activated capability. A missing
// CONFIG_SUCCESS sentinel is recorded as a warning only.
func (b *Bootstrapper) configure(ctx context.Context, p *proc.Process, result *Result) {
	out, err := b.runner.Run(ctx, p, b.configCommand, b.timeout)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("configuration failed: %v", err))

		return
	}

	if !strings.Contains(out, ConfigSuccessSentinel) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("configuration produced no %s sentinel", ConfigSuccessSentinel))
	}
}

// parseVariant extracts the variant name following the MODULES_LOADED
// sentinel, up to end of line.
func parseVariant(out string) (string, bool) {
	idx := strings.Index(out, ModulesLoadedSentinel)
	if idx < 0 {
		return "", false
	}

	rest := out[idx+len(ModulesLoadedSentinel):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}

	variant := strings.TrimSpace(rest)
	if variant == "" {
		return "", false
	}

	return variant, true
}
