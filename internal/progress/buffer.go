package progress

import (
	"sync"

	api "github.com/petrorag/petrorag/api/v1alpha1"
)

type message struct {
	event api.FileUpdateEvent
	prev  *message
}

// eventBuffer is an unbounded FIFO of progress events. Each subscriber owns
// one, so a slow consumer queues up here instead of blocking the store's
// update path or its sibling subscribers.
type eventBuffer struct {
	lock sync.Mutex
	head *message
	tail *message
	size int
}

func newEventBuffer() *eventBuffer {
	return &eventBuffer{}
}

func (b *eventBuffer) PushBack(event api.FileUpdateEvent) {
	b.lock.Lock()
	defer b.lock.Unlock()

	msg := &message{event: event}
	if b.head == nil {
		b.head = msg
		b.tail = msg
	} else {
		b.tail.prev = msg
		b.tail = msg
	}
	b.size++
}

func (b *eventBuffer) Pop() (api.FileUpdateEvent, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.head == nil {
		return api.FileUpdateEvent{}, false
	}
	tmp := b.head
	if b.head.prev != nil {
		b.head = b.head.prev
	} else {
		// removing the last one
		b.head = nil
		b.tail = nil
	}
	b.size--
	return tmp.event, true
}

func (b *eventBuffer) Size() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.size
}
