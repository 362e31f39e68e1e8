package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/itish2003/ragqa/conversation"
	"github/itish2003/ragqa/models"
	"github/itish2003/ragqa/registry"
	"github/itish2003/ragqa/services"
	"github/itish2003/ragqa/vectorstore"
)

type fakeResponder struct {
	parts    []string
	sessions []string
	asked    []string
}

func (f *fakeResponder) Respond(_ context.Context, sid, q string) iter.Seq[string] {
	f.sessions = append(f.sessions, sid)
	f.asked = append(f.asked, q)
	return func(yield func(string) bool) {
		for _, p := range f.parts {
			if !yield(p) {
				return
			}
		}
	}
}

type fakeRAG struct {
	services.RAGService
	reset []string
}

func (f *fakeRAG) NewSession(id string) string {
	if id == "" {
		id = "generated"
	}
	f.reset = append(f.reset, id)
	return id
}

type fakeIndexer struct {
	uploaded  []string
	contents  []string
	uploadErr error
	deleteErr error
	ingestErr error
	cleared   bool
}

func (f *fakeIndexer) UploadFiles(_ context.Context, uploads []services.Upload) ([]models.UploadResult, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	var out []models.UploadResult
	for _, u := range uploads {
		b, _ := io.ReadAll(u.Content)
		f.uploaded = append(f.uploaded, u.Filename)
		f.contents = append(f.contents, string(b))
		out = append(out, models.UploadResult{Filename: u.Filename, Status: services.StatusIndexed, Chunks: 1})
	}
	return out, nil
}

func (f *fakeIndexer) ListFiles(context.Context) (models.FilesResponse, error) {
	return models.FilesResponse{Files: []models.FileInfo{{Name: "a.pdf", Chunks: 3}}, TotalChunks: 3}, nil
}

func (f *fakeIndexer) DeleteFile(context.Context, string) error { return f.deleteErr }

func (f *fakeIndexer) IngestURL(context.Context, string) (int, error) {
	if f.ingestErr != nil {
		return 0, f.ingestErr
	}
	return 4, nil
}

func (f *fakeIndexer) ListWebSources() (models.WebSourcesResponse, error) {
	return models.WebSourcesResponse{Sources: []models.FileInfo{}}, nil
}

func (f *fakeIndexer) DeleteWebSource(context.Context, string) error { return f.deleteErr }

func (f *fakeIndexer) ClearAll(context.Context) error {
	f.cleared = true
	return nil
}

type countStore struct {
	vectorstore.Store
	docs, web int
	err       error
}

func (s countStore) Count(_ context.Context, coll vectorstore.Collection) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	if coll == vectorstore.Web {
		return s.web, nil
	}
	return s.docs, nil
}

func (s countStore) Name() string { return "memory" }

type harness struct {
	router    *gin.Engine
	responder *fakeResponder
	rag       *fakeRAG
	indexer   *fakeIndexer
}

func newHarness(store vectorstore.Store) *harness {
	gin.SetMode(gin.TestMode)
	h := &harness{
		responder: &fakeResponder{parts: []string{"Insulin lowers blood sugar.", "\n\nSources: diabetes.pdf (p. 2)"}},
		rag:       &fakeRAG{},
		indexer:   &fakeIndexer{},
	}
	c := NewRAGController(h.responder, h.rag, h.indexer, store, "test", 1, nil)
	h.router = gin.New()
	h.router.GET("/health", c.Health)
	c.Register(h.router.Group("/api/v1"))
	return h
}

func (h *harness) do(method, path string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func TestAsk_StreamsPlainText(t *testing.T) {
	h := newHarness(countStore{})

	w := h.do(http.MethodPost, "/api/v1/ask", jsonBody(t, gin.H{"question": "how is diabetes treated", "sessionID": "abc"}), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "abc", w.Header().Get("X-Session-ID"))
	assert.Equal(t, "Insulin lowers blood sugar.\n\nSources: diabetes.pdf (p. 2)", w.Body.String())
	assert.Equal(t, []string{"how is diabetes treated"}, h.responder.asked)
}

func TestAsk_SessionResolution(t *testing.T) {
	h := newHarness(countStore{})

	h.do(http.MethodPost, "/api/v1/ask", jsonBody(t, gin.H{"question": "q"}), map[string]string{"X-Session-ID": "from-header"})
	h.do(http.MethodPost, "/api/v1/ask", jsonBody(t, gin.H{"question": "q"}), nil)
	h.do(http.MethodPost, "/api/v1/ask", jsonBody(t, gin.H{"question": "q", "sessionID": "body"}), map[string]string{"X-Session-ID": "header"})

	assert.Equal(t, []string{"from-header", conversation.DefaultSessionID, "body"}, h.responder.sessions)
}

func TestAsk_BadBody(t *testing.T) {
	h := newHarness(countStore{})
	w := h.do(http.MethodPost, "/api/v1/ask", bytes.NewBufferString("{not json"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, h.responder.asked)
}

func TestNewSession(t *testing.T) {
	h := newHarness(countStore{})

	w := h.do(http.MethodPost, "/api/v1/new-session", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "generated", resp.SessionID)

	w = h.do(http.MethodPost, "/api/v1/new-session", jsonBody(t, gin.H{"sessionID": "abc"}), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"generated", "abc"}, h.rag.reset)
	assert.Equal(t, "abc", w.Header().Get("X-Session-ID"))
}

func multipartBody(t *testing.T, files map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	h := newHarness(countStore{})
	body, ct := multipartBody(t, map[string]string{"notes.txt": "hello"})

	w := h.do(http.MethodPost, "/api/v1/upload", body, map[string]string{"Content-Type": ct})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "1 of 1 files indexed", resp.Message)
	assert.Equal(t, []string{"notes.txt"}, h.indexer.uploaded)
	assert.Equal(t, []string{"hello"}, h.indexer.contents)
}

func TestUpload_Errors(t *testing.T) {
	t.Run("no files", func(t *testing.T) {
		h := newHarness(countStore{})
		body, ct := multipartBody(t, nil)
		w := h.do(http.MethodPost, "/api/v1/upload", body, map[string]string{"Content-Type": ct})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("too many files", func(t *testing.T) {
		h := newHarness(countStore{})
		h.indexer.uploadErr = fmt.Errorf("%w: limit 3", services.ErrTooManyFiles)
		body, ct := multipartBody(t, map[string]string{"a.txt": "a"})
		w := h.do(http.MethodPost, "/api/v1/upload", body, map[string]string{"Content-Type": ct})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "too many files")
	})
	t.Run("too large", func(t *testing.T) {
		h := newHarness(countStore{})
		body, ct := multipartBody(t, map[string]string{"big.txt": string(bytes.Repeat([]byte("x"), 2<<20))})
		w := h.do(http.MethodPost, "/api/v1/upload", body, map[string]string{"Content-Type": ct})
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Empty(t, h.indexer.uploaded)
	})
}

func TestDeleteFile_StatusCodes(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("x: %w", registry.ErrNotFound), http.StatusNotFound},
		{services.ErrInvalidFilename, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h := newHarness(countStore{})
		h.indexer.deleteErr = tt.err
		w := h.do(http.MethodDelete, "/api/v1/files/a.pdf", nil, nil)
		assert.Equal(t, tt.want, w.Code, fmt.Sprint(tt.err))
	}
}

func TestWebEndpoints(t *testing.T) {
	h := newHarness(countStore{})

	w := h.do(http.MethodPost, "/api/v1/web", jsonBody(t, gin.H{"url": "https://example.org"}), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.IngestURLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Chunks)

	w = h.do(http.MethodPost, "/api/v1/web", jsonBody(t, gin.H{}), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "url is required")

	h.indexer.ingestErr = services.ErrInvalidURL
	w = h.do(http.MethodPost, "/api/v1/web", jsonBody(t, gin.H{"url": "ftp://x"}), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h.indexer.ingestErr = errors.New("connection refused")
	w = h.do(http.MethodPost, "/api/v1/web", jsonBody(t, gin.H{"url": "https://down.example"}), nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = h.do(http.MethodGet, "/api/v1/web", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sources":[]}`, w.Body.String())

	h.indexer.deleteErr = registry.ErrNotFound
	w = h.do(http.MethodDelete, "/api/v1/web", jsonBody(t, gin.H{"url": "https://example.org"}), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListFilesAndClearAll(t *testing.T) {
	h := newHarness(countStore{})

	w := h.do(http.MethodGet, "/api/v1/files", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var files models.FilesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &files))
	assert.Equal(t, 3, files.TotalChunks)

	w = h.do(http.MethodDelete, "/api/v1/clear-all", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, h.indexer.cleared)
}

func TestHealth(t *testing.T) {
	h := newHarness(countStore{docs: 12, web: 3})
	w := h.do(http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 12, resp.Documents)
	assert.Equal(t, 3, resp.WebChunks)
	assert.Equal(t, "memory", resp.VectorStore)

	h = newHarness(countStore{err: errors.New("dial tcp: refused")})
	w = h.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}
