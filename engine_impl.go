package shellherd

import (
	"context"
	"time"

	"github.com/virtengine/shellherd/internal/engine"
)

// engineImpl implements Engine by delegating to the internal engine
// service.
type engineImpl struct {
	inner *engine.Engine
}

// Compile-time verification that engineImpl implements Engine.
var _ Engine = (*engineImpl)(nil)

func newEngine(opts *engineOptions) *engineImpl {
	return &engineImpl{
		inner: engine.New(&opts.cfg, opts.strategies, opts.configCommand),
	}
}

func (e *engineImpl) Start() error {
	return e.inner.Start()
}

func (e *engineImpl) Stop() {
	e.inner.Stop()
}

func (e *engineImpl) Launch(ctx context.Context) (*Process, error) {
	return e.inner.Launch(ctx)
}

func (e *engineImpl) Execute(
	ctx context.Context,
	p *Process,
	command string,
	timeout time.Duration,
) (string, error) {
	return e.inner.Execute(ctx, p, command, timeout)
}

func (e *engineImpl) Bootstrap(
	ctx context.Context,
	p *Process,
	bypass bool,
) (*BootstrapResult, error) {
	return e.inner.Bootstrap(ctx, p, bypass)
}

func (e *engineImpl) CreateSession(ctx context.Context, key string) (*Process, error) {
	return e.inner.CreateSession(ctx, key)
}

func (e *engineImpl) GetSession(key string) (*Process, bool) {
	return e.inner.GetSession(key)
}

func (e *engineImpl) Session(key string) (*Process, error) {
	return e.inner.Session(key)
}

func (e *engineImpl) DisposeSession(key string) bool {
	return e.inner.DisposeSession(key)
}

func (e *engineImpl) Terminate(p *Process, grace time.Duration) bool {
	return e.inner.Terminate(p, grace)
}

func (e *engineImpl) ProcessCount() int {
	return e.inner.ProcessCount()
}

func (e *engineImpl) CleanupAll() {
	e.inner.CleanupAll()
}
