package game

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const recordSaveTimeout = 5 * time.Second

type RecordStore interface {
	SaveRecord(ctx context.Context, sgfText string) error
}

// Recorder mirrors the latest SGF record to a store from a single goroutine.
// Only the newest pending record is kept; intermediate ones are skipped.
type Recorder struct {
	store RecordStore
	log   *zap.SugaredLogger

	mu      sync.Mutex
	pending *string
	wake    chan struct{}
}

func NewRecorder(store RecordStore, log *zap.SugaredLogger) *Recorder {
	return &Recorder{
		store: store,
		log:   log,
		wake:  make(chan struct{}, 1),
	}
}

func (r *Recorder) Submit(sgfText string) {
	r.mu.Lock()
	r.pending = &sgfText
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run saves submitted records until ctx is done, then flushes whatever is still pending.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-r.wake:
			r.flush(ctx)
		case <-ctx.Done():
			r.flush(context.WithoutCancel(ctx))
			return
		}
	}
}

func (r *Recorder) flush(ctx context.Context) {
	r.mu.Lock()
	text := r.pending
	r.pending = nil
	r.mu.Unlock()

	if text == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, recordSaveTimeout)
	defer cancel()

	if err := r.store.SaveRecord(ctx, *text); err != nil {
		r.log.Errorf("failed to save game record: %v", err)
	}
}
