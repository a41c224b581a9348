package events

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("buffer", Ordered, func() {
	Context("buffer", func() {
		It("add successfully", func() {
			buffer := newBuffer()

			// add the first message
			err := buffer.PushBack(&message{Kind: DocumentMessageKind, Data: []byte("msg1")})
			Expect(err).To(BeNil())
			Expect(buffer.Size()).To(Equal(1))
			Expect(buffer.head).NotTo(BeNil())
			Expect(buffer.tail).NotTo(BeNil())

			// second
			err = buffer.PushBack(&message{Kind: DocumentMessageKind, Data: []byte("msg2")})
			Expect(err).To(BeNil())
			Expect(buffer.Size()).To(Equal(2))

			Expect(buffer.head.Data).To(Equal([]byte("msg1")))
			Expect(buffer.tail.Data).To(Equal([]byte("msg2")))
		})

		It("pop", func() {
			buffer := newBuffer()

			err := buffer.PushBack(&message{Kind: DocumentMessageKind, Data: []byte("msg1")})
			Expect(err).To(BeNil())
			err = buffer.PushBack(&message{Kind: BatchMessageKind, Data: []byte("msg2")})
			Expect(err).To(BeNil())
			Expect(buffer.Size()).To(Equal(2))

			m := buffer.Pop()
			Expect(m).NotTo(BeNil())
			Expect(m.Data).To(Equal([]byte("msg1")))
			Expect(buffer.Size()).To(Equal(1))

			m = buffer.Pop()
			Expect(m).NotTo(BeNil())
			Expect(m.Data).To(Equal([]byte("msg2")))
			Expect(buffer.Size()).To(Equal(0))
			Expect(buffer.head).To(BeNil())
			Expect(buffer.tail).To(BeNil())

			m = buffer.Pop()
			Expect(m).To(BeNil())
		})
	})
})
