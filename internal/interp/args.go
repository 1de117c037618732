package interp

import (
	"path/filepath"
	"strings"
)

// Flavor classifies an interpreter executable so the engine can pick the
// right invocation flags and marker-echo syntax.
type Flavor string

const (
	// FlavorPowerShell covers pwsh and Windows PowerShell.
	FlavorPowerShell Flavor = "powershell"
	// FlavorPosix covers Bourne-style shells (sh, bash, zsh, dash, ksh).
	FlavorPosix Flavor = "posix"
	// FlavorUnknown is any interpreter the engine has no profile for.
	FlavorUnknown Flavor = "unknown"
)

// Detect classifies an interpreter by its executable basename.
func Detect(path string) Flavor {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(name, ".exe")

	switch name {
	case "pwsh", "powershell":
		return FlavorPowerShell
	case "sh", "bash", "zsh", "dash", "ksh":
		return FlavorPosix
	default:
		return FlavorUnknown
	}
}

// BuildArgs constructs the interpreter invocation arguments: no startup
// profile, interactive "read commands from stdin" mode. An explicit
// override replaces the computed arguments entirely.
func BuildArgs(path string, override []string) []string {
	if override != nil {
		return append([]string(nil), override...)
	}

	switch Detect(path) {
	case FlavorPowerShell:
		return []string{
			"-NoProfile",
			"-NoExit",
			"-ExecutionPolicy", "Bypass",
			"-Command", "-",
		}
	case FlavorPosix:
		// Read commands from stdin.
		return []string{"-s"}
	default:
		return nil
	}
}

// EchoFormat returns the fmt template whose single %s argument produces a
// line that makes the interpreter print the completion marker verbatim.
func EchoFormat(path, override string) string {
	if override != "" {
		return override
	}

	switch Detect(path) {
	case FlavorPowerShell:
		return "Write-Output '%s'"
	default:
		return "echo '%s'"
	}
}

// ExitCommand returns the command sent during graceful termination.
func ExitCommand(path, override string) string {
	if override != "" {
		return override
	}

	return "exit"
}
