// Package event is the in-process domain event bus.
//
// Handlers never affect the emitter: their errors and panics are logged and
// dropped, and nothing is retried.
package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/yakoovad/teamhub/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Handler func(ctx context.Context, e Event) error

type Bus struct {
	mu       sync.RWMutex
	handlers map[Name][]Handler

	inflight sync.WaitGroup
	timeout  time.Duration
	await    bool
	limit    int
	logger   *zap.Logger
}

type Option func(*Bus)

// WithHandlerTimeout bounds every handler invocation. Zero disables the bound.
func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bus) {
		b.timeout = d
	}
}

// WithAwaitHandlers makes Emit behave like EmitAndWait.
func WithAwaitHandlers(await bool) Option {
	return func(b *Bus) {
		b.await = await
	}
}

// WithMaxConcurrentHandlers caps how many handlers of one EmitAndWait run at
// once. Zero or less means no cap.
func WithMaxConcurrentHandlers(n int) Option {
	return func(b *Bus) {
		b.limit = n
	}
}

// WithLogger sets the logger used when the emitting context carries none.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bus) {
		b.logger = l
	}
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[Name][]Handler),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for every event of type T.
func Subscribe[T Event](b *Bus, h func(ctx context.Context, e T) error) {
	var zero T
	name := zero.EventName()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[name] = append(b.handlers[name], func(ctx context.Context, e Event) error {
		payload, ok := e.(T)
		if !ok {
			return errors.Errorf("unexpected payload %T for event %s", e, name)
		}
		return h(ctx, payload)
	})
}

// Emit schedules every handler of e and returns immediately, unless the bus
// was built WithAwaitHandlers.
func (b *Bus) Emit(ctx context.Context, e Event) {
	if b.await {
		b.EmitAndWait(ctx, e)
		return
	}

	hs := b.snapshot(e.EventName())
	if len(hs) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)

	b.inflight.Add(len(hs))
	for _, h := range hs {
		go func() {
			defer b.inflight.Done()
			b.invoke(ctx, e, h)
		}()
	}
}

// EmitAndWait runs every handler of e and returns once all have completed.
// Handler failures are still swallowed.
func (b *Bus) EmitAndWait(ctx context.Context, e Event) {
	hs := b.snapshot(e.EventName())
	if len(hs) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)

	var g errgroup.Group
	if b.limit > 0 {
		g.SetLimit(b.limit)
	}

	b.inflight.Add(len(hs))
	for _, h := range hs {
		g.Go(func() error {
			defer b.inflight.Done()
			b.invoke(ctx, e, h)
			return nil
		})
	}
	_ = g.Wait()
}

// Wait blocks until every handler scheduled so far has returned.
func (b *Bus) Wait() {
	b.inflight.Wait()
}

func (b *Bus) snapshot(name Name) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return append([]Handler(nil), b.handlers[name]...)
}

func (b *Bus) invoke(ctx context.Context, e Event, h Handler) {
	l := b.loggerFor(ctx).With(zap.String("event", string(e.EventName())))

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			l.Error("event handler panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()

	if err := h(ctx, e); err != nil {
		l.Error("event handler failed", zap.Any("payload", e), zap.Error(err))
		return
	}

	l.Debug("event handled")
}

func (b *Bus) loggerFor(ctx context.Context) *zap.Logger {
	if l := logger.FromContext(ctx); l != zap.L() {
		return l
	}
	return b.logger
}
