package events

import (
	"bytes"
	"context"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("producer", Ordered, func() {
	Context("write", func() {
		It("writes successfully", func() {
			w := newTestWriter()
			ep := NewEventProducer(w)

			msg := []byte(`{"document_id":"doc_1"}`)
			err := ep.Write(context.TODO(), DocumentMessageKind, bytes.NewReader(msg))
			Expect(err).To(BeNil())

			msg = []byte(`{"batch_id":"b1"}`)
			err = ep.Write(context.TODO(), BatchMessageKind, bytes.NewReader(msg))
			Expect(err).To(BeNil())

			Eventually(w.Count, 2*time.Second, 10*time.Millisecond).Should(Equal(2))
			Expect(w.Message(0).Context.GetType()).To(Equal(DocumentMessageKind))
			Expect(w.Message(1).Context.GetType()).To(Equal(BatchMessageKind))
			Expect(w.Message(0).Context.GetSource()).To(Equal(eventSource))

			Expect(ep.Close()).To(Succeed())
		})
	})
})

type testwriter struct {
	mu       sync.Mutex
	messages []cloudevents.Event
}

func newTestWriter() *testwriter {
	return &testwriter{messages: []cloudevents.Event{}}
}

func (t *testwriter) Write(_ context.Context, _ string, e cloudevents.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, e)
	return nil
}

func (t *testwriter) Close(_ context.Context) error {
	return nil
}

func (t *testwriter) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

func (t *testwriter) Message(i int) cloudevents.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.messages[i]
}
