package controller

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github/itish2003/ragqa/conversation"
	"github/itish2003/ragqa/models"
	"github/itish2003/ragqa/registry"
	"github/itish2003/ragqa/services"
	"github/itish2003/ragqa/vectorstore"
)

// Responder produces the streamed body of an answer.
type Responder interface {
	Respond(ctx context.Context, sessionID, question string) iter.Seq[string]
}

// Indexer is the part of the indexing service the HTTP layer drives.
type Indexer interface {
	UploadFiles(ctx context.Context, uploads []services.Upload) ([]models.UploadResult, error)
	ListFiles(ctx context.Context) (models.FilesResponse, error)
	DeleteFile(ctx context.Context, filename string) error
	IngestURL(ctx context.Context, rawURL string) (int, error)
	ListWebSources() (models.WebSourcesResponse, error)
	DeleteWebSource(ctx context.Context, rawURL string) error
	ClearAll(ctx context.Context) error
}

// RAGController handles the HTTP requests for the document QA API.
type RAGController struct {
	responder   Responder
	ragService  services.RAGService
	indexer     Indexer
	store       vectorstore.Store
	version     string
	maxUploadMB int
	logger      *zap.Logger
}

// NewRAGController is called from main.go to inject the service dependencies.
func NewRAGController(
	responder Responder,
	ragService services.RAGService,
	indexer Indexer,
	store vectorstore.Store,
	version string,
	maxUploadMB int,
	logger *zap.Logger,
) *RAGController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RAGController{
		responder:   responder,
		ragService:  ragService,
		indexer:     indexer,
		store:       store,
		version:     version,
		maxUploadMB: maxUploadMB,
		logger:      logger.Named("http"),
	}
}

// Register mounts the API routes on the group.
func (c *RAGController) Register(api *gin.RouterGroup) {
	api.POST("/ask", c.Ask)
	api.POST("/new-session", c.NewSession)
	api.POST("/upload", c.Upload)
	api.GET("/files", c.ListFiles)
	api.DELETE("/files/:filename", c.DeleteFile)
	api.POST("/web", c.IngestURL)
	api.GET("/web", c.ListWeb)
	api.DELETE("/web", c.DeleteWeb)
	api.DELETE("/clear-all", c.ClearAll)
}

func sessionID(ctx *gin.Context, fromBody string) string {
	if id := strings.TrimSpace(fromBody); id != "" {
		return id
	}
	if id := strings.TrimSpace(ctx.GetHeader("X-Session-ID")); id != "" {
		return id
	}
	return conversation.DefaultSessionID
}

// Ask is the handler for POST /api/v1/ask. The answer is streamed as
// plain text in the order it is produced.
func (c *RAGController) Ask(ctx *gin.Context) {
	var req models.AskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	sid := sessionID(ctx, req.SessionID)

	ctx.Header("Content-Type", "text/plain; charset=utf-8")
	ctx.Header("X-Session-ID", sid)
	ctx.Header("Cache-Control", "no-cache")
	ctx.Status(http.StatusOK)

	for part := range c.responder.Respond(ctx.Request.Context(), sid, req.Question) {
		if _, err := ctx.Writer.WriteString(part); err != nil {
			c.logger.Warn("client went away", zap.String("session", sid), zap.Error(err))
			return
		}
		ctx.Writer.Flush()
	}
}

// NewSession is the handler for POST /api/v1/new-session.
func (c *RAGController) NewSession(ctx *gin.Context) {
	var req models.SessionRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
	}
	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		id = strings.TrimSpace(ctx.GetHeader("X-Session-ID"))
	}
	id = c.ragService.NewSession(id)
	ctx.Header("X-Session-ID", id)
	ctx.JSON(http.StatusOK, models.SessionResponse{Message: "Session reset", SessionID: id})
}

// Upload is the handler for POST /api/v1/upload (multipart field "files").
func (c *RAGController) Upload(ctx *gin.Context) {
	if c.maxUploadMB > 0 {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, int64(c.maxUploadMB)<<20)
	}
	form, err := ctx.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("Upload exceeds %d MB", c.maxUploadMB)})
			return
		}
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form: " + err.Error()})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "No files provided"})
		return
	}

	uploads := make([]services.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll(uploads)
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Could not read " + fh.Filename})
			return
		}
		uploads = append(uploads, services.Upload{Filename: fh.Filename, Content: f})
	}
	defer closeAll(uploads)

	results, err := c.indexer.UploadFiles(ctx.Request.Context(), uploads)
	if err != nil {
		if errors.Is(err, services.ErrTooManyFiles) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.logger.Error("upload failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process upload"})
		return
	}

	indexed := 0
	for _, r := range results {
		if r.Status == services.StatusIndexed {
			indexed++
		}
	}
	ctx.JSON(http.StatusOK, models.UploadResponse{
		Message: fmt.Sprintf("%d of %d files indexed", indexed, len(results)),
		Results: results,
	})
}

func closeAll(uploads []services.Upload) {
	for _, u := range uploads {
		if f, ok := u.Content.(multipart.File); ok {
			f.Close()
		}
	}
}

// ListFiles is the handler for GET /api/v1/files.
func (c *RAGController) ListFiles(ctx *gin.Context) {
	resp, err := c.indexer.ListFiles(ctx.Request.Context())
	if err != nil {
		c.logger.Error("listing files failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list files"})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// DeleteFile is the handler for DELETE /api/v1/files/:filename.
func (c *RAGController) DeleteFile(ctx *gin.Context) {
	name := ctx.Param("filename")
	err := c.indexer.DeleteFile(ctx.Request.Context(), name)
	switch {
	case err == nil:
		ctx.JSON(http.StatusOK, models.MessageResponse{Message: "Deleted " + name})
	case errors.Is(err, registry.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "File not found: " + name})
	case errors.Is(err, services.ErrInvalidFilename):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.logger.Error("delete failed", zap.String("file", name), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete " + name})
	}
}

// IngestURL is the handler for POST /api/v1/web.
func (c *RAGController) IngestURL(ctx *gin.Context) {
	var req models.IngestURLRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	n, err := c.indexer.IngestURL(ctx.Request.Context(), req.URL)
	switch {
	case err == nil:
		ctx.JSON(http.StatusOK, models.IngestURLResponse{Message: "Web page indexed", URL: req.URL, Chunks: n})
	case errors.Is(err, services.ErrInvalidURL):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNoText):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.logger.Warn("web ingestion failed", zap.String("url", req.URL), zap.Error(err))
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch " + req.URL})
	}
}

// ListWeb is the handler for GET /api/v1/web.
func (c *RAGController) ListWeb(ctx *gin.Context) {
	resp, err := c.indexer.ListWebSources()
	if err != nil {
		c.logger.Error("listing web sources failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list web sources"})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// DeleteWeb is the handler for DELETE /api/v1/web.
func (c *RAGController) DeleteWeb(ctx *gin.Context) {
	var req models.DeleteWebRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	err := c.indexer.DeleteWebSource(ctx.Request.Context(), req.URL)
	switch {
	case err == nil:
		ctx.JSON(http.StatusOK, models.MessageResponse{Message: "Deleted " + req.URL})
	case errors.Is(err, registry.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Web source not found: " + req.URL})
	case errors.Is(err, services.ErrInvalidURL):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.logger.Error("web delete failed", zap.String("url", req.URL), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete " + req.URL})
	}
}

// ClearAll is the handler for DELETE /api/v1/clear-all.
func (c *RAGController) ClearAll(ctx *gin.Context) {
	if err := c.indexer.ClearAll(ctx.Request.Context()); err != nil {
		c.logger.Error("clear-all failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear everything"})
		return
	}
	ctx.JSON(http.StatusOK, models.MessageResponse{Message: "All documents, web sources and sessions cleared"})
}

// Health reports whether the vector store answers and how much it holds.
func (c *RAGController) Health(ctx *gin.Context) {
	resp := models.HealthResponse{
		Status:      "healthy",
		Service:     "RAG API",
		Version:     c.version,
		VectorStore: c.store.Name(),
	}
	docs, err := c.store.Count(ctx.Request.Context(), vectorstore.Docs)
	if err == nil {
		var web int
		web, err = c.store.Count(ctx.Request.Context(), vectorstore.Web)
		resp.WebChunks = web
	}
	resp.Documents = docs
	if err != nil {
		c.logger.Warn("vector store unreachable", zap.Error(err))
		resp.Status = "degraded"
		ctx.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}
