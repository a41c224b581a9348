package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	api "github.com/petrorag/petrorag/api/v1alpha1"
	"go.uber.org/zap"
)

var ErrBatchNotFound = errors.New("batch not found")

const (
	defaultRetention     = time.Hour
	defaultSweepInterval = 5 * time.Minute
)

type StoreOption func(s *Store)

// WithRetention sets how long a fully terminal batch is kept before the
// sweeper may drop it.
func WithRetention(d time.Duration) StoreOption {
	return func(s *Store) {
		s.retention = d
	}
}

func WithSweepInterval(d time.Duration) StoreOption {
	return func(s *Store) {
		s.sweepInterval = d
	}
}

// Store holds the progress of every tracked batch. All access is guarded by
// one mutex; writes for distinct files never conflict semantically, and the
// publish path only appends to per-subscriber buffers, so holding the lock
// across publish keeps every subscriber's event order identical.
type Store struct {
	mu            sync.Mutex
	batches       map[string]*batchState
	retention     time.Duration
	sweepInterval time.Duration
}

type batchState struct {
	order       []string
	files       map[string]*FileProgress
	createdAt   time.Time
	updatedAt   time.Time
	terminalAt  time.Time
	subscribers map[*Subscriber]struct{}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		batches:       make(map[string]*batchState),
		retention:     defaultRetention,
		sweepInterval: defaultSweepInterval,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RecordInitial seeds a batch with pending entries in upload order.
// Calling it twice for the same batch id has no additional effect.
func (s *Store) RecordInitial(batchID string, files []FileSeed) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batchID]; exists {
		return
	}

	now := time.Now().UTC()
	state := &batchState{
		files:       make(map[string]*FileProgress, len(files)),
		createdAt:   now,
		updatedAt:   now,
		subscribers: make(map[*Subscriber]struct{}),
	}
	for _, f := range files {
		if _, dup := state.files[f.Filename]; dup {
			continue
		}
		state.order = append(state.order, f.Filename)
		state.files[f.Filename] = &FileProgress{
			Status:     api.FileStatusPending,
			Detail:     "Waiting to start...",
			Timestamp:  now,
			DocumentID: f.DocumentID,
		}
	}
	s.batches[batchID] = state
}

// Update upserts one file's progress and notifies every subscriber of the
// batch. Regressions in the stage order are dropped; the executor is the
// only writer per file, so a rejected transition indicates a stale caller.
func (s *Store) Update(batchID, filename string, status api.FileStatus, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.batches[batchID]
	if !ok {
		return ErrBatchNotFound
	}

	now := time.Now().UTC()
	fp, ok := state.files[filename]
	if !ok {
		fp = &FileProgress{Status: api.FileStatusPending}
		state.order = append(state.order, filename)
		state.files[filename] = fp
	} else if !allowedTransition(fp.Status, status) {
		zap.S().Named("progress").Debugw("dropping stale status transition",
			"batch_id", batchID, "filename", filename, "from", fp.Status, "to", status)
		return nil
	}

	fp.Status = status
	fp.Detail = detail
	fp.Timestamp = now
	state.updatedAt = now
	if state.terminal() && state.terminalAt.IsZero() {
		state.terminalAt = now
	}

	event := api.FileUpdateEvent{
		BatchId:   batchID,
		Filename:  filename,
		Status:    status,
		Detail:    detail,
		Timestamp: now,
	}
	for sub := range state.subscribers {
		sub.push(event)
	}
	return nil
}

// Snapshot returns a deep copy of the batch record.
func (s *Store) Snapshot(batchID string) (*BatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.batches[batchID]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return state.snapshot(batchID), nil
}

// DeleteFile removes one file's entry; used by termination cleanup.
// Subscribers are woken so they can observe the shrunken batch.
func (s *Store) DeleteFile(batchID, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.batches[batchID]
	if !ok {
		return ErrBatchNotFound
	}
	if _, ok := state.files[filename]; !ok {
		return nil
	}
	delete(state.files, filename)
	for i, name := range state.order {
		if name == filename {
			state.order = append(state.order[:i], state.order[i+1:]...)
			break
		}
	}
	state.updatedAt = time.Now().UTC()
	if state.terminal() && state.terminalAt.IsZero() {
		state.terminalAt = state.updatedAt
	}
	for sub := range state.subscribers {
		sub.wake()
	}
	return nil
}

// DeleteBatch drops the whole batch record and wakes its subscribers, which
// will find the batch gone when they next look it up.
func (s *Store) DeleteBatch(batchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.batches[batchID]
	if !ok {
		return
	}
	delete(s.batches, batchID)
	for sub := range state.subscribers {
		sub.wake()
	}
}

// Subscribe registers a new subscriber and returns it together with a
// snapshot taken atomically with the registration, so the subscriber's event
// stream starts exactly after the snapshot with no gap and no duplicate.
func (s *Store) Subscribe(batchID string) (*Subscriber, *BatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.batches[batchID]
	if !ok {
		return nil, nil, ErrBatchNotFound
	}

	sub := &Subscriber{
		batchID: batchID,
		events:  newEventBuffer(),
		notify:  make(chan struct{}, 1),
	}
	state.subscribers[sub] = struct{}{}
	return sub, state.snapshot(batchID), nil
}

// Unsubscribe detaches one subscriber. Other subscribers are unaffected.
func (s *Store) Unsubscribe(sub *Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.batches[sub.batchID]; ok {
		delete(state.subscribers, sub)
	}
}

// Sweep drops terminal batches older than the retention window. Batches with
// live subscribers are never swept. Returns the number of dropped batches.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, state := range s.batches {
		if len(state.subscribers) > 0 || state.terminalAt.IsZero() {
			continue
		}
		if now.Sub(state.terminalAt) >= s.retention {
			delete(s.batches, id)
			dropped++
		}
	}
	return dropped
}

// Run periodically sweeps expired batches until the context is cancelled.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(now.UTC()); n > 0 {
				zap.S().Named("progress").Debugf("swept %d expired batches", n)
			}
		}
	}
}

func (b *batchState) terminal() bool {
	for _, fp := range b.files {
		if !fp.Status.Terminal() {
			return false
		}
	}
	return true
}

func (b *batchState) snapshot(batchID string) *BatchRecord {
	record := &BatchRecord{
		BatchID:   batchID,
		Files:     make([]FileEntry, 0, len(b.order)),
		CreatedAt: b.createdAt,
		UpdatedAt: b.updatedAt,
	}
	for _, name := range b.order {
		record.Files = append(record.Files, FileEntry{Filename: name, FileProgress: *b.files[name]})
	}
	return record
}

// Subscriber is one independent consumer of a batch's event feed. Events are
// queued in an unbounded buffer; Notify signals that at least one event is
// pending.
type Subscriber struct {
	batchID string
	events  *eventBuffer
	notify  chan struct{}
}

func (s *Subscriber) push(event api.FileUpdateEvent) {
	s.events.PushBack(event)
	s.wake()
}

// wake signals the subscriber without queueing an event; a woken consumer
// with an empty queue should re-check the batch it follows.
func (s *Subscriber) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Notify returns a channel that receives a signal when events are pending.
func (s *Subscriber) Notify() <-chan struct{} {
	return s.notify
}

// Pop dequeues the next pending event, if any.
func (s *Subscriber) Pop() (api.FileUpdateEvent, bool) {
	return s.events.Pop()
}
