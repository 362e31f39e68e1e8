package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github/itish2003/ragqa/config"
	"github/itish2003/ragqa/conversation"
	"github/itish2003/ragqa/embedding"
	"github/itish2003/ragqa/metrics"
	"github/itish2003/ragqa/models"
	"github/itish2003/ragqa/registry"
	"github/itish2003/ragqa/vectorstore"

	"github.com/fsnotify/fsnotify"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"
)

var (
	ErrTooManyFiles = errors.New("too many files")
	ErrNotRelevant  = errors.New("document is not relevant to this assistant")
	ErrNoText       = errors.New("no extractable text")
)

// Upload statuses reported per file.
const (
	StatusIndexed  = "indexed"
	StatusSkipped  = "skipped"
	StatusRejected = "rejected"
)

// RelevanceClassifier decides whether extracted text belongs to the
// assistant's domain. Implementations should answer true when unsure.
type RelevanceClassifier interface {
	ClassifyRelevance(ctx context.Context, text, domain string) bool
}

// Upload is one file received from a client.
type Upload struct {
	Filename string
	Content  io.Reader
}

type IndexingOptions struct {
	ChunkSize     int
	ChunkOverlap  int
	RelevanceGate bool
	Domain        string
	MaxFiles      int
}

// IndexingOptionsFromConfig collects the ingestion settings.
func IndexingOptionsFromConfig(ingest config.IngestConfig, server config.ServerConfig) IndexingOptions {
	return IndexingOptions{
		ChunkSize:     ingest.ChunkSize,
		ChunkOverlap:  ingest.ChunkOverlap,
		RelevanceGate: ingest.RelevanceGate,
		Domain:        ingest.Domain,
		MaxFiles:      server.MaxFiles,
	}
}

// IndexingService turns files and web pages into stored chunks and keeps
// the registry, the upload directory and the vector store in step.
type IndexingService struct {
	embedder  embedding.Embedder
	store     vectorstore.Store
	registry  *registry.Registry
	files     *FileActions
	scraper   *WebScraper
	relevance RelevanceClassifier
	sessions  *conversation.Store
	metrics   *metrics.Metrics
	opts      IndexingOptions
	logger    *zap.Logger
	now       func() time.Time

	// mu serialises ingestion so uploads and watcher events never
	// interleave on the same source.
	mu sync.Mutex
}

// NewIndexingService creates a new indexing service. relevance and m may be nil.
func NewIndexingService(
	embedder embedding.Embedder,
	store vectorstore.Store,
	reg *registry.Registry,
	files *FileActions,
	scraper *WebScraper,
	relevance RelevanceClassifier,
	sessions *conversation.Store,
	m *metrics.Metrics,
	opts IndexingOptions,
	logger *zap.Logger,
) *IndexingService {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = opts.ChunkSize / 5
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexingService{
		embedder:  embedder,
		store:     store,
		registry:  reg,
		files:     files,
		scraper:   scraper,
		relevance: relevance,
		sessions:  sessions,
		metrics:   m,
		opts:      opts,
		logger:    logger.Named("indexer"),
		now:       time.Now,
	}
}

// UploadFiles stores and indexes a batch of uploads. The batch is refused
// with ErrTooManyFiles when stored files plus new ones would exceed the
// limit; otherwise every file gets its own result.
func (s *IndexingService) UploadFiles(ctx context.Context, uploads []Upload) ([]models.UploadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.registry.Count(models.SourceDoc)
	if err != nil {
		return nil, err
	}
	incoming := 0
	for _, u := range uploads {
		if isSupportedFile(u.Filename) && !s.files.Exists(u.Filename) {
			incoming++
		}
	}
	if existing+incoming > s.opts.MaxFiles {
		return nil, fmt.Errorf("%w: %d stored, %d new, limit %d", ErrTooManyFiles, existing, incoming, s.opts.MaxFiles)
	}

	results := make([]models.UploadResult, 0, len(uploads))
	for _, u := range uploads {
		results = append(results, s.uploadOne(ctx, u))
	}
	return results, nil
}

func (s *IndexingService) uploadOne(ctx context.Context, u Upload) models.UploadResult {
	name := filepath.Base(u.Filename)
	res := models.UploadResult{Filename: name}

	if !isSupportedFile(name) {
		res.Status, res.Error = StatusRejected, ErrUnsupportedFile.Error()
		return res
	}
	if s.files.Exists(name) {
		res.Status = StatusSkipped
		return res
	}

	path, _, err := s.files.Save(name, u.Content)
	if err != nil {
		res.Status, res.Error = StatusRejected, err.Error()
		return res
	}

	info, err := s.ingestFile(ctx, path, true)
	if err != nil {
		s.logger.Warn("upload rejected", zap.String("file", name), zap.Error(err))
		if rmErr := s.files.Delete(name); rmErr != nil {
			s.logger.Warn("could not remove rejected upload", zap.String("file", name), zap.Error(rmErr))
		}
		res.Status, res.Error = StatusRejected, err.Error()
		return res
	}
	res.Status, res.Chunks = StatusIndexed, info.Chunks
	return res
}

// IngestFile extracts, chunks, embeds and stores one file, replacing any
// chunks previously stored for it.
func (s *IndexingService) IngestFile(ctx context.Context, path string) (models.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingestFile(ctx, path, s.opts.RelevanceGate)
}

func (s *IndexingService) ingestFile(ctx context.Context, path string, gate bool) (models.FileInfo, error) {
	name := filepath.Base(path)

	pages, err := ExtractPages(ctx, path)
	if err != nil {
		return models.FileInfo{}, fmt.Errorf("extracting %s: %w", name, err)
	}
	if strings.TrimSpace(PagesText(pages)) == "" {
		return models.FileInfo{}, fmt.Errorf("%s: %w", name, ErrNoText)
	}
	if gate && s.opts.RelevanceGate && s.relevance != nil {
		if !s.relevance.ClassifyRelevance(ctx, PagesText(pages), s.opts.Domain) {
			return models.FileInfo{}, fmt.Errorf("%s: %w", name, ErrNotRelevant)
		}
	}

	chunks, err := s.chunkPages(ctx, pages, path, name, models.SourceDoc)
	if err != nil {
		return models.FileInfo{}, err
	}
	s.logger.Info("split file", zap.String("file", name), zap.Int("pages", len(pages)), zap.Int("chunks", len(chunks)))

	if err := s.replaceChunks(ctx, vectorstore.Docs, chunks, path, name); err != nil {
		return models.FileInfo{}, err
	}

	hash, err := calculateFileHash(path)
	if err != nil {
		s.logger.Warn("could not hash file", zap.String("file", name), zap.Error(err))
	}
	var size int64
	if st, err := os.Stat(path); err == nil {
		size = st.Size()
	}
	info := models.FileInfo{
		Name:       name,
		Source:     path,
		SourceType: models.SourceDoc,
		Size:       size,
		Hash:       hash,
		Chunks:     len(chunks),
		UploadedAt: s.now().UTC(),
	}
	if err := s.registry.Put(info); err != nil {
		return info, fmt.Errorf("recording %s: %w", name, err)
	}
	return info, nil
}

// IngestURL fetches a web page and stores its chunks in the web collection.
func (s *IndexingService) IngestURL(ctx context.Context, rawURL string) (int, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return 0, err
	}
	url := u.String()

	text, err := s.scraper.FetchText(ctx, url)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("%s: %w", url, ErrNoText)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chunks, err := s.chunkPages(ctx, []Page{{Text: text}}, url, url, models.SourceWeb)
	if err != nil {
		return 0, err
	}
	if err := s.replaceChunks(ctx, vectorstore.Web, chunks, URLVariants(url)...); err != nil {
		return 0, err
	}
	info := models.FileInfo{
		Name:       url,
		Source:     url,
		SourceType: models.SourceWeb,
		Size:       int64(len(text)),
		Chunks:     len(chunks),
		UploadedAt: s.now().UTC(),
	}
	if err := s.registry.Put(info); err != nil {
		return len(chunks), fmt.Errorf("recording %s: %w", url, err)
	}
	s.logger.Info("ingested web page", zap.String("url", url), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// chunkPages splits every page and embeds each chunk. Chunk indexes run
// across the whole source so point ids stay unique.
func (s *IndexingService) chunkPages(ctx context.Context, pages []Page, source, filename string, st models.SourceType) ([]models.Chunk, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(s.opts.ChunkSize),
		textsplitter.WithChunkOverlap(s.opts.ChunkOverlap),
	)

	var chunks []models.Chunk
	for _, p := range pages {
		parts, err := splitter.SplitText(p.Text)
		if err != nil {
			return nil, fmt.Errorf("splitting %s: %w", filename, err)
		}
		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			vec, err := s.embedder.Embed(ctx, part)
			if err != nil {
				return nil, fmt.Errorf("could not embed chunk %d of %s: %w", len(chunks), filename, err)
			}
			chunks = append(chunks, models.Chunk{
				Text:       part,
				Source:     source,
				Filename:   filename,
				ChunkIndex: len(chunks),
				SourceType: st,
				Page:       p.Number,
				Embedding:  vec,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, ErrNoText)
	}
	return chunks, nil
}

// replaceChunks drops whatever was stored under any of keys, then upserts.
func (s *IndexingService) replaceChunks(ctx context.Context, coll vectorstore.Collection, chunks []models.Chunk, keys ...string) error {
	if err := s.store.DeleteBySource(ctx, coll, keys...); err != nil {
		return fmt.Errorf("removing old chunks: %w", err)
	}
	if err := s.store.Upsert(ctx, coll, chunks); err != nil {
		return fmt.Errorf("storing chunks: %w", err)
	}
	s.metrics.ChunksIngested(string(coll), len(chunks))
	return nil
}

// DeleteFile removes an uploaded file, its chunks and its registry entry,
// and clears every conversation so no answer cites it again.
func (s *IndexingService) DeleteFile(ctx context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := filepath.Base(filename)
	path, err := s.files.Path(name)
	if err != nil {
		return err
	}
	info, regErr := s.registry.Get(models.SourceDoc, name)
	if regErr != nil && !s.files.Exists(name) {
		return regErr
	}

	keys := []string{path, name}
	if info.Source != "" && info.Source != path {
		keys = append(keys, info.Source)
	}
	if err := s.store.DeleteBySource(ctx, vectorstore.Docs, keys...); err != nil {
		return fmt.Errorf("removing chunks of %s: %w", name, err)
	}
	if err := s.files.Delete(name); err != nil {
		return err
	}
	if regErr == nil {
		if err := s.registry.Delete(models.SourceDoc, name); err != nil && !errors.Is(err, registry.ErrNotFound) {
			return err
		}
	}
	s.sessions.ResetAll()
	s.logger.Info("deleted file", zap.String("file", name))
	return nil
}

// DeleteWebSource removes a web page's chunks under every spelling of its URL.
func (s *IndexingService) DeleteWebSource(ctx context.Context, rawURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	variants := URLVariants(rawURL)
	if len(variants) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if err := s.store.DeleteBySource(ctx, vectorstore.Web, variants...); err != nil {
		return fmt.Errorf("removing chunks of %s: %w", rawURL, err)
	}
	found := false
	for _, v := range variants {
		err := s.registry.Delete(models.SourceWeb, v)
		if err == nil {
			found = true
			continue
		}
		if !errors.Is(err, registry.ErrNotFound) {
			return err
		}
	}
	s.sessions.ResetAll()
	if !found {
		return fmt.Errorf("%s: %w", rawURL, registry.ErrNotFound)
	}
	s.logger.Info("deleted web source", zap.String("url", rawURL))
	return nil
}

// ListFiles returns the uploaded documents and the stored chunk count.
func (s *IndexingService) ListFiles(ctx context.Context) (models.FilesResponse, error) {
	files, err := s.registry.List(models.SourceDoc)
	if err != nil {
		return models.FilesResponse{}, err
	}
	total, err := s.store.Count(ctx, vectorstore.Docs)
	if err != nil {
		s.logger.Warn("could not count document chunks", zap.Error(err))
		for _, f := range files {
			total += f.Chunks
		}
	}
	if files == nil {
		files = []models.FileInfo{}
	}
	return models.FilesResponse{Files: files, TotalChunks: total}, nil
}

func (s *IndexingService) ListWebSources() (models.WebSourcesResponse, error) {
	sources, err := s.registry.List(models.SourceWeb)
	if err != nil {
		return models.WebSourcesResponse{}, err
	}
	if sources == nil {
		sources = []models.FileInfo{}
	}
	return models.WebSourcesResponse{Sources: sources}, nil
}

// ClearAll empties both collections, the registry, the upload directory
// and every conversation.
func (s *IndexingService) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, coll := range []vectorstore.Collection{vectorstore.Docs, vectorstore.Web} {
		if err := s.store.Clear(ctx, coll); err != nil {
			errs = append(errs, fmt.Errorf("clearing %s: %w", coll, err))
		}
	}
	if err := s.registry.Clear(); err != nil {
		errs = append(errs, err)
	}
	if err := s.files.Clear(); err != nil {
		errs = append(errs, err)
	}
	s.sessions.ResetAll()
	s.logger.Info("cleared all documents and sessions")
	return errors.Join(errs...)
}

// WatchDirectory starts a long-running process to watch for file changes in real-time.
func (s *IndexingService) WatchDirectory(ctx context.Context, dirPath string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Error("failed to create file watcher", zap.Error(err))
		return
	}
	defer watcher.Close()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isSupportedFile(event.Name) {
					continue
				}
				s.logger.Debug("watcher event", zap.String("event", event.String()))

				// Editors often write through a temp file and rename, so
				// Create and Write are handled the same.
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					s.syncFile(ctx, event.Name)
				} else if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					s.logger.Info("file removed, removing from index", zap.String("file", event.Name))
					if err := s.forgetFile(ctx, event.Name); err != nil {
						s.logger.Error("failed to delete records", zap.String("file", event.Name), zap.Error(err))
					}
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("watcher error", zap.Error(err))
			case <-ctx.Done():
				s.logger.Info("context cancelled, shutting down watcher")
				return
			}
		}
	}()

	s.logger.Info("watching directory", zap.String("dir", dirPath))
	if err := watcher.Add(dirPath); err != nil {
		s.logger.Error("failed to add path to watcher", zap.String("dir", dirPath), zap.Error(err))
	}

	<-ctx.Done()
}

// syncFile re-indexes path unless the registry already holds its hash.
func (s *IndexingService) syncFile(ctx context.Context, path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Hashed under the lock so an upload in progress is seen complete.
	hash, err := calculateFileHash(path)
	if err != nil {
		s.logger.Warn("could not hash file", zap.String("file", path), zap.Error(err))
		return false
	}

	if info, err := s.registry.Get(models.SourceDoc, filepath.Base(path)); err == nil && info.Hash == hash {
		return false
	}
	s.logger.Info("indexing new or modified file", zap.String("file", path))
	if _, err := s.ingestFile(ctx, path, s.opts.RelevanceGate); err != nil {
		s.logger.Error("failed to process file", zap.String("file", path), zap.Error(err))
		return false
	}
	return true
}

func (s *IndexingService) forgetFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := filepath.Base(path)
	if err := s.store.DeleteBySource(ctx, vectorstore.Docs, path, name); err != nil {
		return err
	}
	if err := s.registry.Delete(models.SourceDoc, name); err != nil && !errors.Is(err, registry.ErrNotFound) {
		return err
	}
	s.sessions.ResetAll()
	return nil
}

// ScanAndIndexDirectory brings the index in line with dirPath: new and
// changed files are indexed, files gone from disk are removed.
func (s *IndexingService) ScanAndIndexDirectory(ctx context.Context, dirPath string) {
	s.logger.Info("starting directory scan", zap.String("dir", dirPath))

	indexed, err := s.registry.List(models.SourceDoc)
	if err != nil {
		s.logger.Error("could not get current index state", zap.Error(err))
		return
	}
	s.logger.Info("files currently in the index", zap.Int("count", len(indexed)))

	localFiles := make(map[string]bool)
	err = filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !info.IsDir() && isSupportedFile(path) {
			localFiles[filepath.Base(path)] = true
			s.syncFile(ctx, path)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("error walking the path", zap.String("dir", dirPath), zap.Error(err))
		return
	}

	for _, f := range indexed {
		if !localFiles[f.Name] {
			s.logger.Info("file deleted, removing from index", zap.String("file", f.Name))
			if err := s.forgetFile(ctx, f.Source); err != nil {
				s.logger.Error("failed to delete records", zap.String("file", f.Name), zap.Error(err))
			}
		}
	}
	s.logger.Info("directory scan finished")
}

func calculateFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
