// Package shellherd manages long-lived command-interpreter subprocesses.
//
// The engine launches interpreter processes (PowerShell-family by default),
// sends them text commands over stdin, and detects command completion via a
// unique sentinel marker appended to every command. It supports one-shot
// processes and persistent named sessions, enforces per-command timeouts,
// and sweeps exited processes in the background.
//
// # Basic Usage
//
//	eng := shellherd.New(shellherd.WithLogger(slog.Default()))
//	if err := eng.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
//	ctx := context.Background()
//
//	p, err := eng.Launch(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := eng.Execute(ctx, p, "Get-Date", 30*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(out)
//
//	eng.Terminate(p, 5*time.Second)
//
// # Named Sessions
//
// Processes that should outlive a single command are registered under a
// caller-chosen key. Creating a session under an existing key disposes the
// prior process first:
//
//	p, err := eng.CreateSession(ctx, "vcenter-main")
//	...
//	if p, ok := eng.GetSession("vcenter-main"); ok {
//	    out, err := eng.Execute(ctx, p, "Get-VM | ConvertTo-Json", time.Minute)
//	    ...
//	}
//	eng.DisposeSession("vcenter-main")
//
// # Capability Bootstrap
//
// Before domain commands are issued, a process can run the two-phase
// capability handshake (module activation, then configuration). Callers
// that know a process is preconfigured can bypass it:
//
//	result, err := eng.Bootstrap(ctx, p, false)
//	if err != nil {
//	    log.Fatalf("bootstrap failed: %v (warnings: %v)", err, result.Warnings)
//	}
//	fmt.Println("variant:", result.Variant)
//
// # Error Handling
//
// The engine provides typed errors for its failure taxonomy:
//
//	out, err := eng.Execute(ctx, p, cmd, timeout)
//	if err != nil {
//	    if toErr, ok := errors.AsType[*shellherd.CommandTimeoutError](err); ok {
//	        // The subprocess is still running; terminating it (or not)
//	        // is the caller's decision.
//	        _ = toErr
//	    }
//	    if exErr, ok := errors.AsType[*shellherd.ProcessExitedError](err); ok {
//	        log.Printf("interpreter died with exit code %d", exErr.ExitCode)
//	    }
//	}
//
// A command that times out is left running. Its eventual output is
// discarded by the next command's buffer clear, so callers that keep using
// the process after a timeout accept that the late output is lost.
package shellherd
