package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/davidahmann/renoguard/internal/ledger"
	"github.com/davidahmann/renoguard/pkg/types"
)

var (
	ErrQueueFull = errors.New("audit queue full")
	ErrClosed    = errors.New("audit logger closed")
)

const (
	DefaultQueueSize   = 256
	DefaultMaxAttempts = 5
	DefaultBaseBackoff = 100 * time.Millisecond
	DefaultMaxBackoff  = 5 * time.Second
)

type Options struct {
	QueueSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = DefaultBaseBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = DefaultMaxBackoff
	}
	if o.MaxBackoff < o.BaseBackoff {
		o.MaxBackoff = o.BaseBackoff
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Logger queues entries and writes them from a single worker goroutine. A
// slow or failing store never blocks Save.
type Logger struct {
	store ledger.Store
	opts  Options
	log   *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan types.AuditLogEntry

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	written atomic.Int64
	dropped atomic.Int64
}

func NewLogger(store ledger.Store, opts Options) *Logger {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	l := &Logger{
		store:  store,
		opts:   opts,
		log:    opts.Logger,
		queue:  make(chan types.AuditLogEntry, opts.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Save enqueues entry and returns immediately. A full queue drops the entry.
func (l *Logger) Save(entry types.AuditLogEntry) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	select {
	case l.queue <- entry:
		return nil
	default:
		l.dropped.Add(1)
		l.log.Error("audit entry dropped", "entry_id", entry.EntryID, "target", string(entry.Target), "error", ErrQueueFull.Error())
		return ErrQueueFull
	}
}

// Close stops accepting entries and waits for the queue to drain. When ctx
// ends first, pending retries are abandoned and ctx.Err is returned.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	select {
	case <-l.done:
		l.cancel()
		return nil
	case <-ctx.Done():
		l.cancel()
		<-l.done
		return ctx.Err()
	}
}

func (l *Logger) Written() int64 { return l.written.Load() }

func (l *Logger) Dropped() int64 { return l.dropped.Load() }

func (l *Logger) run() {
	defer close(l.done)
	for entry := range l.queue {
		if l.ctx.Err() != nil {
			l.dropped.Add(1)
			l.log.Error("audit entry abandoned", "entry_id", entry.EntryID, "error", l.ctx.Err().Error())
			continue
		}
		l.write(entry)
	}
}

func (l *Logger) write(entry types.AuditLogEntry) {
	var err error
	for attempt := 0; ; attempt++ {
		err = l.store.Append(l.ctx, entry)
		if err == nil {
			l.written.Add(1)
			return
		}
		if !retryable(err) || attempt+1 >= l.opts.MaxAttempts {
			break
		}
		l.log.Warn("audit write failed, retrying", "entry_id", entry.EntryID, "attempt", attempt+1, "error", err.Error())
		if !l.sleep(l.backoff(attempt)) {
			err = l.ctx.Err()
			break
		}
	}
	if errors.Is(err, ledger.ErrDuplicateEntry) {
		return
	}
	l.dropped.Add(1)
	l.log.Error("audit entry not written", "entry_id", entry.EntryID, "target", string(entry.Target), "error", err.Error())
}

func (l *Logger) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-l.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// backoff doubles from BaseBackoff per attempt, capped at MaxBackoff.
func (l *Logger) backoff(attempt int) time.Duration {
	d := l.opts.BaseBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= l.opts.MaxBackoff {
			return l.opts.MaxBackoff
		}
	}
	return d
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, ledger.ErrDuplicateEntry),
		errors.Is(err, ledger.ErrDigestMismatch),
		errors.Is(err, ledger.ErrInvalidEntry),
		errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

// Save writes entry synchronously. Failures are logged and returned; callers
// that treat auditing as best effort may ignore the error.
func Save(ctx context.Context, store ledger.Store, entry types.AuditLogEntry, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	if err := store.Append(ctx, entry); err != nil {
		log.Error("audit entry not written", "entry_id", entry.EntryID, "target", string(entry.Target), "error", err.Error())
		return err
	}
	return nil
}
