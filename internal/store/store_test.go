package store_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	api "github.com/petrorag/petrorag/api/v1alpha1"
	"github.com/petrorag/petrorag/internal/config"
	st "github.com/petrorag/petrorag/internal/store"
	"github.com/petrorag/petrorag/internal/store/model"
	"gorm.io/gorm"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Store Suite")
}

var _ = Describe("Store", Ordered, func() {
	var (
		store  st.Store
		gormDB *gorm.DB
	)

	BeforeAll(func() {
		cfg := config.NewDefault()
		db, err := st.InitDB(cfg)
		Expect(err).To(BeNil())
		gormDB = db

		store = st.NewStore(db)
		Expect(store).ToNot(BeNil())
		Expect(store.InitialMigration()).To(Succeed())
	})

	AfterAll(func() {
		store.Close()
	})

	AfterEach(func() {
		gormDB.Exec("DELETE FROM messages;")
		gormDB.Exec("DELETE FROM chats;")
		gormDB.Exec("DELETE FROM chunks;")
		gormDB.Exec("DELETE FROM documents;")
		gormDB.Exec("DELETE FROM categories;")
	})

	Context("transaction", func() {
		It("commits a document successfully", func() {
			ctx, err := store.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			document, err := store.Document().Create(ctx, model.Document{
				ID:         "doc_000000000001",
				CategoryID: "cat_1",
				Filename:   "report.pdf",
				BlobKey:    "uploads/cat_1/x_report.pdf",
			})
			Expect(document).ToNot(BeNil())
			Expect(err).To(BeNil())

			_, cerr := st.Commit(ctx)
			Expect(cerr).To(BeNil())

			count := 0
			err = gormDB.Raw("SELECT COUNT(*) FROM documents;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(1))
		})

		It("rolls back a document successfully", func() {
			ctx, err := store.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			_, err = store.Document().Create(ctx, model.Document{
				ID:         "doc_000000000002",
				CategoryID: "cat_1",
				Filename:   "report.pdf",
				BlobKey:    "uploads/cat_1/x_report.pdf",
			})
			Expect(err).To(BeNil())

			_, cerr := st.Rollback(ctx)
			Expect(cerr).To(BeNil())

			count := 0
			err = gormDB.Raw("SELECT COUNT(*) FROM documents;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(0))
		})
	})

	Context("document", func() {
		It("lists documents filtered by category and batch", func() {
			for _, d := range []model.Document{
				{ID: "doc_1", CategoryID: "cat_a", Filename: "a.pdf", BlobKey: "k1", BatchID: "b1"},
				{ID: "doc_2", CategoryID: "cat_a", Filename: "b.pdf", BlobKey: "k2", BatchID: "b2"},
				{ID: "doc_3", CategoryID: "cat_b", Filename: "c.pdf", BlobKey: "k3", BatchID: "b1"},
			} {
				_, err := store.Document().Create(context.TODO(), d)
				Expect(err).To(BeNil())
			}

			documents, err := store.Document().List(context.TODO(), st.NewDocumentQueryFilter().ByCategoryID("cat_a"))
			Expect(err).To(BeNil())
			Expect(documents).To(HaveLen(2))

			documents, err = store.Document().List(context.TODO(), st.NewDocumentQueryFilter().ByBatchID("b1"))
			Expect(err).To(BeNil())
			Expect(documents).To(HaveLen(2))
		})

		It("lists expired daily documents", func() {
			old := time.Now().UTC().Add(-48 * time.Hour)
			for _, d := range []model.Document{
				{Model: gorm.Model{CreatedAt: old}, ID: "doc_old_daily", CategoryID: "cat_a", Filename: "a.pdf", BlobKey: "k1", Daily: true},
				{ID: "doc_new_daily", CategoryID: "cat_a", Filename: "b.pdf", BlobKey: "k2", Daily: true},
				{Model: gorm.Model{CreatedAt: old}, ID: "doc_old_regular", CategoryID: "cat_a", Filename: "c.pdf", BlobKey: "k3"},
			} {
				_, err := store.Document().Create(context.TODO(), d)
				Expect(err).To(BeNil())
			}

			cutoff := time.Now().UTC().Add(-24 * time.Hour)
			documents, err := store.Document().List(context.TODO(),
				st.NewDocumentQueryFilter().ByDaily().CreatedBefore(cutoff))
			Expect(err).To(BeNil())
			Expect(documents).To(HaveLen(1))
			Expect(documents[0].ID).To(Equal("doc_old_daily"))
		})

		It("updates status and page count", func() {
			_, err := store.Document().Create(context.TODO(), model.Document{
				ID: "doc_4", CategoryID: "cat_a", Filename: "a.pdf", BlobKey: "k1",
			})
			Expect(err).To(BeNil())

			Expect(store.Document().UpdateStatus(context.TODO(), "doc_4", api.DocumentStatusProcessing, "")).To(Succeed())
			Expect(store.Document().UpdatePageCount(context.TODO(), "doc_4", 42)).To(Succeed())

			document, err := store.Document().Get(context.TODO(), "doc_4")
			Expect(err).To(BeNil())
			Expect(document.Status).To(Equal("processing"))
			Expect(document.PageCount).To(Equal(42))
		})

		It("returns a typed error for a missing document", func() {
			_, err := store.Document().Get(context.TODO(), "doc_unknown")
			Expect(err).To(MatchError(st.ErrRecordNotFound))

			err = store.Document().UpdateStatus(context.TODO(), "doc_unknown", api.DocumentStatusFailed, "boom")
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})

		It("deletes a document idempotently", func() {
			_, err := store.Document().Create(context.TODO(), model.Document{
				ID: "doc_5", CategoryID: "cat_a", Filename: "a.pdf", BlobKey: "k1",
			})
			Expect(err).To(BeNil())

			Expect(store.Document().Delete(context.TODO(), "doc_5")).To(Succeed())
			Expect(store.Document().Delete(context.TODO(), "doc_5")).To(Succeed())

			_, err = store.Document().Get(context.TODO(), "doc_5")
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("category", func() {
		It("rejects duplicate names", func() {
			_, err := store.Category().Create(context.TODO(), model.Category{ID: "cat_1", Name: "drilling"})
			Expect(err).To(BeNil())

			_, err = store.Category().Create(context.TODO(), model.Category{ID: "cat_2", Name: "drilling"})
			Expect(err).To(MatchError(st.ErrDuplicateKey))
		})

		It("increments and decrements the document count", func() {
			_, err := store.Category().Create(context.TODO(), model.Category{ID: "cat_1", Name: "drilling"})
			Expect(err).To(BeNil())

			Expect(store.Category().IncrementDocumentCount(context.TODO(), "cat_1", 2)).To(Succeed())
			Expect(store.Category().IncrementDocumentCount(context.TODO(), "cat_1", -1)).To(Succeed())

			category, err := store.Category().Get(context.TODO(), "cat_1")
			Expect(err).To(BeNil())
			Expect(category.DocumentCount).To(Equal(1))
		})
	})

	Context("chunk", func() {
		It("creates and deletes chunks per document", func() {
			chunks := model.ChunkList{
				{ID: "doc_1_chunk_0", DocumentID: "doc_1", CategoryID: "cat_a", Content: "first"},
				{ID: "doc_1_chunk_1", DocumentID: "doc_1", CategoryID: "cat_a", Content: "second"},
				{ID: "doc_2_chunk_0", DocumentID: "doc_2", CategoryID: "cat_a", Content: "other"},
			}
			Expect(store.Chunk().CreateBatch(context.TODO(), chunks)).To(Succeed())

			listed, err := store.Chunk().ListByDocument(context.TODO(), "doc_1")
			Expect(err).To(BeNil())
			Expect(listed).To(HaveLen(2))

			Expect(store.Chunk().DeleteByDocument(context.TODO(), "doc_1")).To(Succeed())

			listed, err = store.Chunk().ListByDocument(context.TODO(), "doc_1")
			Expect(err).To(BeNil())
			Expect(listed).To(BeEmpty())

			listed, err = store.Chunk().ListByDocument(context.TODO(), "doc_2")
			Expect(err).To(BeNil())
			Expect(listed).To(HaveLen(1))
		})
	})

	Context("chat", func() {
		It("appends messages in order", func() {
			_, err := store.Chat().Create(context.TODO(), model.Chat{ID: "chat_1", CategoryID: "cat_a", Title: "mud weights"})
			Expect(err).To(BeNil())

			Expect(store.Chat().AppendMessage(context.TODO(), "chat_1", model.Message{Role: "user", Content: "q1"})).To(Succeed())
			Expect(store.Chat().AppendMessage(context.TODO(), "chat_1", model.Message{Role: "assistant", Content: "a1"})).To(Succeed())

			chat, err := store.Chat().Get(context.TODO(), "chat_1")
			Expect(err).To(BeNil())
			Expect(chat.Messages).To(HaveLen(2))
			Expect(chat.Messages[0].Role).To(Equal("user"))
			Expect(chat.Messages[1].Role).To(Equal("assistant"))
		})

		It("deletes a chat together with its messages", func() {
			_, err := store.Chat().Create(context.TODO(), model.Chat{ID: "chat_2", CategoryID: "cat_a"})
			Expect(err).To(BeNil())
			Expect(store.Chat().AppendMessage(context.TODO(), "chat_2", model.Message{Role: "user", Content: "q"})).To(Succeed())

			Expect(store.Chat().Delete(context.TODO(), "chat_2")).To(Succeed())

			_, err = store.Chat().Get(context.TODO(), "chat_2")
			Expect(err).To(MatchError(st.ErrRecordNotFound))

			count := 0
			Expect(gormDB.Raw("SELECT COUNT(*) FROM messages WHERE deleted_at IS NULL;").Scan(&count).Error).To(BeNil())
			Expect(count).To(Equal(0))
		})
	})
})
