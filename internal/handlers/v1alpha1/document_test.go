package v1alpha1_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	api "github.com/petrorag/petrorag/api/v1alpha1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *apiFixture) waitCompleted(t *testing.T, documentID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(f.server.URL + "/api/v1/documents/" + documentID)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var document api.Document
		if err := json.NewDecoder(resp.Body).Decode(&document); err != nil {
			return false
		}
		return document.Status == api.DocumentStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)
}

func (f *apiFixture) listDocuments(t *testing.T) api.DocumentList {
	t.Helper()
	resp, err := http.Get(f.server.URL + "/api/v1/documents/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var documents api.DocumentList
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&documents))
	return documents
}

func httpDelete(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestUploadDailyDocumentsMarksDaily(t *testing.T) {
	f := newAPIFixture(t)
	close(f.processor.gate)

	responses := f.uploadTo(t, "/api/v1/documents/upload/daily/cat_1", "morning-report.pdf")
	f.waitCompleted(t, responses[0].DocumentId)

	documents := f.listDocuments(t)
	require.Len(t, documents, 1)
	assert.True(t, documents[0].IsDaily)

	f.uploadTo(t, "/api/v1/documents/upload/cat_1", "permanent.pdf")
	require.Eventually(t, func() bool { return len(f.listDocuments(t)) == 2 }, 5*time.Second, 20*time.Millisecond)
	for _, d := range f.listDocuments(t) {
		if d.Filename == "permanent.pdf" {
			assert.False(t, d.IsDaily)
		}
	}
}

func TestCleanupDailyRemovesOnlyExpiredDailyDocuments(t *testing.T) {
	f := newAPIFixture(t)
	close(f.processor.gate)

	daily := f.uploadTo(t, "/api/v1/documents/upload/daily/cat_1", "daily.pdf")
	regular := f.uploadTo(t, "/api/v1/documents/upload/cat_1", "permanent.pdf")
	f.waitCompleted(t, daily[0].DocumentId)
	f.waitCompleted(t, regular[0].DocumentId)

	// with zero retention every daily document is already expired
	f.cfg.Service.DailyRetentionHours = 0

	resp := httpDelete(t, f.server.URL+"/api/v1/documents/cleanup/daily")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result api.DailyCleanupResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.DeletedCount)

	documents := f.listDocuments(t)
	require.Len(t, documents, 1)
	assert.Equal(t, "permanent.pdf", documents[0].Filename)
}

func TestCleanupDailyKeepsFreshDocuments(t *testing.T) {
	f := newAPIFixture(t)
	close(f.processor.gate)

	daily := f.uploadTo(t, "/api/v1/documents/upload/daily/cat_1", "fresh.pdf")
	f.waitCompleted(t, daily[0].DocumentId)

	// default retention is a day; a just-uploaded document stays
	resp := httpDelete(t, f.server.URL+"/api/v1/documents/cleanup/daily")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result api.DailyCleanupResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 0, result.DeletedCount)
	assert.Len(t, f.listDocuments(t), 1)
}

func TestBurnDocumentRemovesAllTraces(t *testing.T) {
	f := newAPIFixture(t)
	close(f.processor.gate)

	responses := f.uploadTo(t, "/api/v1/documents/upload/cat_1", "a.pdf")
	documentID := responses[0].DocumentId
	f.waitCompleted(t, documentID)

	resp := httpDelete(t, f.server.URL+"/api/v1/documents/"+documentID+"/burn")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Contains(t, result["message"], "burned successfully")

	getResp, err := http.Get(f.server.URL + "/api/v1/documents/" + documentID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)

	catResp, err := http.Get(f.server.URL + "/api/v1/categories/cat_1")
	require.NoError(t, err)
	defer catResp.Body.Close()
	var category api.Category
	require.NoError(t, json.NewDecoder(catResp.Body).Decode(&category))
	assert.Equal(t, 0, category.DocumentCount)
}

func TestBurnUnknownDocument(t *testing.T) {
	f := newAPIFixture(t)

	resp := httpDelete(t, f.server.URL+"/api/v1/documents/doc_missing/burn")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestImageSearchRejectsEmptyQuery(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Post(f.server.URL+"/api/v1/query/image-search", "application/json",
		strings.NewReader(`{"query_text": ""}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImageSearchRejectsOversizedTopK(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Post(f.server.URL+"/api/v1/query/image-search", "application/json",
		strings.NewReader(`{"query_text": "separator schematic", "top_k": 50}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImageSearchUnknownCategory(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Post(f.server.URL+"/api/v1/query/image-search", "application/json",
		strings.NewReader(`{"query_text": "separator schematic", "category_id": "cat_missing"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamChatMessageUnknownChat(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Post(f.server.URL+"/api/v1/chats/chat_missing/messages/stream", "application/json",
		strings.NewReader(`{"content": "what is the mud weight?"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamChatMessageRejectsEmptyContent(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Post(f.server.URL+"/api/v1/chats/chat_1/messages/stream", "application/json",
		strings.NewReader(`{"content": ""}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
