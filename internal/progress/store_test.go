package progress

import (
	"testing"
	"time"

	api "github.com/petrorag/petrorag/api/v1alpha1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBatch(s *Store, batchID string, filenames ...string) {
	seeds := make([]FileSeed, 0, len(filenames))
	for _, f := range filenames {
		seeds = append(seeds, FileSeed{Filename: f, DocumentID: "doc_" + f})
	}
	s.RecordInitial(batchID, seeds)
}

func drain(sub *Subscriber) []api.FileUpdateEvent {
	var events []api.FileUpdateEvent
	for {
		event, ok := sub.Pop()
		if !ok {
			return events
		}
		events = append(events, event)
	}
}

func TestRecordInitialSeedsPendingEntries(t *testing.T) {
	s := NewStore()
	seedBatch(s, "b1", "a.pdf", "b.pdf")

	record, err := s.Snapshot("b1")
	require.NoError(t, err)
	require.Len(t, record.Files, 2)
	assert.Equal(t, "a.pdf", record.Files[0].Filename)
	assert.Equal(t, "b.pdf", record.Files[1].Filename)
	for _, f := range record.Files {
		assert.Equal(t, api.FileStatusPending, f.Status)
		assert.Equal(t, "Waiting to start...", f.Detail)
	}
}

func TestRecordInitialIsIdempotent(t *testing.T) {
	s := NewStore()
	seedBatch(s, "b1", "a.pdf")
	require.NoError(t, s.Update("b1", "a.pdf", api.FileStatusParsing, "Parsing document"))

	// a second seeding must not reset anything
	seedBatch(s, "b1", "a.pdf", "b.pdf")

	record, err := s.Snapshot("b1")
	require.NoError(t, err)
	require.Len(t, record.Files, 1)
	assert.Equal(t, api.FileStatusParsing, record.Files[0].Status)
}

func TestUpdateRejectsRegressions(t *testing.T) {
	s := NewStore()
	seedBatch(s, "b1", "a.pdf")

	require.NoError(t, s.Update("b1", "a.pdf", api.FileStatusIndexing, "Indexing 3 chunks"))
	// stale transition backwards is dropped without error
	require.NoError(t, s.Update("b1", "a.pdf", api.FileStatusParsing, "Parsing document"))

	record, err := s.Snapshot("b1")
	require.NoError(t, err)
	assert.Equal(t, api.FileStatusIndexing, record.Files[0].Status)

	// failed is reachable from any non-terminal state
	require.NoError(t, s.Update("b1", "a.pdf", api.FileStatusFailed, "boom"))
	record, _ = s.Snapshot("b1")
	assert.Equal(t, api.FileStatusFailed, record.Files[0].Status)

	// terminal states never move again
	require.NoError(t, s.Update("b1", "a.pdf", api.FileStatusCompleted, "done"))
	record, _ = s.Snapshot("b1")
	assert.Equal(t, api.FileStatusFailed, record.Files[0].Status)
}

func TestUpdateUnknownBatch(t *testing.T) {
	s := NewStore()
	assert.ErrorIs(t, s.Update("nope", "a.pdf", api.FileStatusParsing, ""), ErrBatchNotFound)
}

func TestSubscribersSeeIdenticalEventOrder(t *testing.T) {
	s := NewStore()
	seedBatch(s, "b1", "a.pdf", "b.pdf")

	sub1, _, err := s.Subscribe("b1")
	require.NoError(t, err)
	sub2, _, err := s.Subscribe("b1")
	require.NoError(t, err)
	defer s.Unsubscribe(sub1)
	defer s.Unsubscribe(sub2)

	require.NoError(t, s.Update("b1", "a.pdf", api.FileStatusProcessing, "Starting processing"))
	require.NoError(t, s.Update("b1", "b.pdf", api.FileStatusProcessing, "Starting processing"))
	require.NoError(t, s.Update("b1", "a.pdf", api.FileStatusParsing, "Parsing document"))

	events1 := drain(sub1)
	events2 := drain(sub2)
	require.Len(t, events1, 3)
	assert.Equal(t, events1, events2)
	assert.Equal(t, "a.pdf", events1[0].Filename)
	assert.Equal(t, "b.pdf", events1[1].Filename)
	assert.Equal(t, api.FileStatusParsing, events1[2].Status)
}

func TestLateSubscriberGetsSnapshotWithoutGap(t *testing.T) {
	s := NewStore()
	seedBatch(s, "b1", "a.pdf")
	require.NoError(t, s.Update("b1", "a.pdf", api.FileStatusChunking, "Creating chunks"))

	sub, record, err := s.Subscribe("b1")
	require.NoError(t, err)
	defer s.Unsubscribe(sub)

	// the snapshot already contains the chunking update and the
	// subscriber's feed starts empty
	assert.Equal(t, api.FileStatusChunking, record.Files[0].Status)
	assert.Empty(t, drain(sub))

	require.NoError(t, s.Update("b1", "a.pdf", api.FileStatusIndexing, "Indexing 2 chunks"))
	select {
	case <-sub.Notify():
	case <-time.After(time.Second):
		t.Fatal("expected a notification")
	}
	events := drain(sub)
	require.Len(t, events, 1)
	assert.Equal(t, api.FileStatusIndexing, events[0].Status)
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	s := NewStore()
	seedBatch(s, "b1", "a.pdf")

	slow, _, err := s.Subscribe("b1")
	require.NoError(t, err)
	fast, _, err := s.Subscribe("b1")
	require.NoError(t, err)
	defer s.Unsubscribe(slow)
	defer s.Unsubscribe(fast)

	// the slow subscriber never drains; updates must still go through
	for i := 0; i < 100; i++ {
		require.NoError(t, s.Update("b1", "a.pdf", api.FileStatusProcessing, "Starting processing"))
	}
	require.NoError(t, s.Update("b1", "a.pdf", api.FileStatusParsing, "Parsing document"))

	events := drain(fast)
	require.NotEmpty(t, events)
	assert.Equal(t, api.FileStatusParsing, events[len(events)-1].Status)
}

func TestDeleteFileAndBatch(t *testing.T) {
	s := NewStore()
	seedBatch(s, "b1", "a.pdf", "b.pdf")

	require.NoError(t, s.DeleteFile("b1", "a.pdf"))
	// deleting an unknown file is a no-op
	require.NoError(t, s.DeleteFile("b1", "a.pdf"))

	record, err := s.Snapshot("b1")
	require.NoError(t, err)
	require.Len(t, record.Files, 1)
	assert.Equal(t, "b.pdf", record.Files[0].Filename)

	s.DeleteBatch("b1")
	_, err = s.Snapshot("b1")
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestDeletionWakesSubscribers(t *testing.T) {
	s := NewStore()
	seedBatch(s, "b1", "a.pdf", "b.pdf")

	sub, _, err := s.Subscribe("b1")
	require.NoError(t, err)
	defer s.Unsubscribe(sub)

	// a file deletion carries no event but must still signal the
	// subscriber, or a stream waiting on a terminated batch hangs
	require.NoError(t, s.DeleteFile("b1", "b.pdf"))
	select {
	case <-sub.Notify():
	case <-time.After(time.Second):
		t.Fatal("expected a wake after DeleteFile")
	}
	assert.Empty(t, drain(sub))

	s.DeleteBatch("b1")
	select {
	case <-sub.Notify():
	case <-time.After(time.Second):
		t.Fatal("expected a wake after DeleteBatch")
	}
}

func TestSweepDropsOnlyExpiredTerminalBatches(t *testing.T) {
	s := NewStore(WithRetention(time.Hour))

	seedBatch(s, "done", "a.pdf")
	require.NoError(t, s.Update("done", "a.pdf", api.FileStatusCompleted, "Processing completed"))

	seedBatch(s, "running", "b.pdf")
	require.NoError(t, s.Update("running", "b.pdf", api.FileStatusParsing, "Parsing document"))

	seedBatch(s, "watched", "c.pdf")
	require.NoError(t, s.Update("watched", "c.pdf", api.FileStatusFailed, "boom"))
	sub, _, err := s.Subscribe("watched")
	require.NoError(t, err)

	dropped := s.Sweep(time.Now().UTC().Add(2 * time.Hour))
	assert.Equal(t, 1, dropped)

	_, err = s.Snapshot("done")
	assert.ErrorIs(t, err, ErrBatchNotFound)
	_, err = s.Snapshot("running")
	assert.NoError(t, err)
	_, err = s.Snapshot("watched")
	assert.NoError(t, err)

	// once the subscriber detaches the terminal batch becomes sweepable
	s.Unsubscribe(sub)
	assert.Equal(t, 1, s.Sweep(time.Now().UTC().Add(2*time.Hour)))
}
