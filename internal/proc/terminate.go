package proc

import "time"

// reapWait bounds how long a forced kill waits for the exit status to be
// collected before giving up on confirmation.
const reapWait = 2 * time.Second

// Terminate shuts the subprocess down, gracefully if possible.
//
// The graceful phase writes the interpreter's exit command and waits up to
// grace for a natural exit. Failures in the graceful phase are swallowed;
// if the process is still alive after the grace period it is forcefully
// killed together with any descendants. The return value reports whether
// the process exited gracefully.
func (p *Process) Terminate(grace time.Duration) bool {
	if p.Exited() {
		p.Release()

		return true
	}

	p.log.Debug("Terminating process", "id", p.id, "pid", p.Pid(), "grace", grace)

	if err := p.WriteLine(p.exitCmd); err != nil {
		p.log.Debug("Graceful exit write failed", "id", p.id, "error", err)
	}

	_ = p.CloseStdin()

	select {
	case <-p.exited:
		p.Release()
		p.log.Debug("Process exited gracefully", "id", p.id)

		return true

	case <-time.After(grace):
	}

	p.Kill()

	select {
	case <-p.exited:
	case <-time.After(reapWait):
		p.log.Warn("Process did not report exit after kill", "id", p.id, "pid", p.Pid())
	}

	p.Release()

	return false
}

// Kill forcefully terminates the subprocess together with any child
// processes it spawned.
func (p *Process) Kill() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}

	pid := p.cmd.Process.Pid

	if err := killTree(pid); err != nil {
		p.log.Debug("Process-tree kill failed, killing process directly", "pid", pid, "error", err)

		_ = p.cmd.Process.Kill()
	}
}
