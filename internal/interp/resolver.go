// Package interp resolves interpreter executables and builds their
// invocation arguments.
package interp

import (
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/virtengine/shellherd/internal/errors"
)

// Resolver locates a usable interpreter executable from an ordered list of
// candidates. Bare names resolve against PATH, absolute or relative paths
// against the filesystem. Resolution is existence-only: candidates are
// never executed to test them.
type Resolver struct {
	log        *slog.Logger
	candidates []string
}

// NewResolver creates a resolver over the given ordered candidate list.
func NewResolver(log *slog.Logger, candidates []string) *Resolver {
	return &Resolver{
		log:        log.With("component", "resolver"),
		candidates: candidates,
	}
}

// Resolve returns the first candidate that resolves to an existing
// executable. Returns InterpreterNotFoundError if none do.
func (r *Resolver) Resolve() (string, error) {
	path, err := r.resolveFrom(r.candidates)
	if err != nil {
		return "", err
	}

	return path, nil
}

// ResolveAll returns every candidate that resolves, in candidate order.
// The launcher iterates this list so a candidate that starts but exits
// immediately can fall through to the next one.
func (r *Resolver) ResolveAll() ([]string, error) {
	resolved := make([]string, 0, len(r.candidates))

	for _, candidate := range r.candidates {
		path, ok := r.resolveOne(candidate)
		if !ok {
			continue
		}

		resolved = append(resolved, path)
	}

	if len(resolved) == 0 {
		r.log.Warn("No interpreter found", "candidates", r.candidates)

		return nil, &errors.InterpreterNotFoundError{Candidates: append([]string(nil), r.candidates...)}
	}

	r.log.Debug("Resolved interpreter candidates", "resolved", resolved)

	return resolved, nil
}

func (r *Resolver) resolveFrom(candidates []string) (string, error) {
	for _, candidate := range candidates {
		if path, ok := r.resolveOne(candidate); ok {
			return path, nil
		}
	}

	return "", &errors.InterpreterNotFoundError{Candidates: append([]string(nil), candidates...)}
}

// resolveOne checks a single candidate without executing it.
func (r *Resolver) resolveOne(candidate string) (string, bool) {
	if candidate == "" {
		return "", false
	}

	// Paths are checked directly; bare names go through PATH lookup.
	if strings.ContainsRune(candidate, os.PathSeparator) {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			r.log.Debug("Candidate path not usable", "candidate", candidate, "error", err)

			return "", false
		}

		return candidate, true
	}

	path, err := exec.LookPath(candidate)
	if err != nil {
		r.log.Debug("Candidate not in PATH", "candidate", candidate)

		return "", false
	}

	return path, true
}
