package journal

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sadsciencee/modalkit/internal/events"
	"github.com/sadsciencee/modalkit/internal/pubsub"
)

// Recorder writes hub events into a Store as they are published.
type Recorder struct {
	store  *Store
	logger *zap.Logger

	recorded atomic.Int64
	failed   atomic.Int64
}

// NewRecorder creates a recorder for store.
func NewRecorder(store *Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.L()
	}
	return &Recorder{store: store, logger: logger.Named("journal")}
}

// Start subscribes to the hub's modal and toast brokers. The returned channel
// closes once both subscriptions have drained, after ctx is done or the hub
// shuts down.
func (r *Recorder) Start(ctx context.Context, hub *pubsub.Hub) <-chan struct{} {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for e := range hub.Modal.Subscribe(ctx) {
			r.record(e.Payload)
		}
	}()
	go func() {
		defer wg.Done()
		for e := range hub.Toast.Subscribe(ctx) {
			r.recordToast(e.Payload)
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// Recorded reports how many entries were written.
func (r *Recorder) Recorded() int64 { return r.recorded.Load() }

// Failed reports how many entries could not be written.
func (r *Recorder) Failed() int64 { return r.failed.Load() }

// Writes outlive the subscription context so events already delivered are
// not lost on shutdown.
func (r *Recorder) record(e events.ModalEvent) {
	if err := r.store.Record(context.Background(), e); err != nil {
		r.failed.Add(1)
		r.logger.Error("failed to journal modal event",
			zap.String("modal_id", e.SessionID),
			zap.String("type", string(e.Type)),
			zap.Error(err),
		)
		return
	}
	r.recorded.Add(1)
}

func (r *Recorder) recordToast(t events.ToastEvent) {
	if err := r.store.RecordToast(context.Background(), t); err != nil {
		r.failed.Add(1)
		r.logger.Error("failed to journal toast", zap.String("modal_id", t.SessionID), zap.Error(err))
		return
	}
	r.recorded.Add(1)
}
