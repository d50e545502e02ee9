package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/agilerag/internal/extract"
	"github.com/hyperjump/agilerag/internal/fileid"
	"github.com/hyperjump/agilerag/internal/metadata"
	"github.com/hyperjump/agilerag/internal/models"
)

const defaultWorkers = 4

// categoryKeywords maps path keywords to categories, checked in order.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"scrum", models.CategoryScrum},
	{"kanban", models.CategoryKanban},
	{"syllabus", models.CategorySyllabus},
	{"silabo", models.CategorySyllabus},
}

// InferCategory derives a category from path by case-insensitive keyword match, defaulting to general.
func InferCategory(path string) string {
	lower := strings.ToLower(path)
	for _, kw := range categoryKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.category
		}
	}
	return models.CategoryGeneral
}

// Ingestor loads supported files into normalized text and turns them into retrieval units.
type Ingestor struct {
	extractor *extract.Extractor
	chunker   *Chunker
	registry  *metadata.Registry
	workers   int
	logger    *zap.Logger
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithLogger sets a logger for per-file events and batch failures.
func WithLogger(l *zap.Logger) IngestorOption {
	return func(in *Ingestor) { in.logger = l }
}

// WithWorkers sets how many files a directory load reads in parallel.
func WithWorkers(n int) IngestorOption {
	return func(in *Ingestor) {
		if n > 0 {
			in.workers = n
		}
	}
}

// WithRegistry sets the metadata registry used for enrichment.
func WithRegistry(r *metadata.Registry) IngestorOption {
	return func(in *Ingestor) { in.registry = r }
}

// NewIngestor creates an ingestor that splits text with chunker.
func NewIngestor(chunker *Chunker, opts ...IngestorOption) *Ingestor {
	in := &Ingestor{
		extractor: extract.NewExtractor(),
		chunker:   chunker,
		registry:  metadata.NewRegistry(),
		workers:   defaultWorkers,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Chunker returns the chunker used by Process.
func (in *Ingestor) Chunker() *Chunker { return in.chunker }

// Describe returns the SourceDocument for path without extracting text.
// category overrides inference when non-empty.
func (in *Ingestor) Describe(path, category string) (*models.SourceDocument, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(abs))
	if !extract.IsSupported(abs) {
		return nil, &models.FormatError{Path: abs, Ext: ext, Supported: extract.SupportedExtensions}
	}
	hash, err := fileid.HashFile(abs)
	if err != nil {
		return nil, err
	}
	if category == "" {
		category = InferCategory(abs)
	}
	return &models.SourceDocument{
		Path:     abs,
		Category: category,
		FileType: strings.TrimPrefix(ext, "."),
		FileHash: hash,
	}, nil
}

// Load extracts the file at path into texts stamped with source_file, source_path, category,
// file_type, and file_hash. PDF and form-feed paged text carry page numbers; markdown carries sections.
// An empty category is inferred from the path.
func (in *Ingestor) Load(path, category string) ([]models.LoadedText, error) {
	doc, err := in.Describe(path, category)
	if err != nil {
		return nil, err
	}
	sections, err := in.extractor.Extract(doc.Path)
	if err != nil {
		return nil, err
	}
	base := metadata.NewTemplate(filepath.Base(doc.Path), doc.Category, models.Metadata{
		models.KeySourcePath: doc.Path,
		models.KeyFileType:   doc.FileType,
		models.KeyFileHash:   doc.FileHash,
	})
	texts := make([]models.LoadedText, 0, len(sections))
	for _, s := range sections {
		md := base.Clone()
		if s.Page > 0 {
			md[models.KeyPage] = s.Page
			md[models.KeyTotalPages] = s.TotalPages
		}
		if s.Heading != "" {
			md[models.KeySection] = s.Heading
		}
		texts = append(texts, models.LoadedText{Text: Preprocess(s.Text), Metadata: md})
	}
	in.logger.Debug("file loaded", zap.String("path", doc.Path), zap.Int("texts", len(texts)))
	return texts, nil
}

// Process loads path, splits every text, and enriches each fragment with the parent metadata plus
// chunk_id (sequential over the whole file) and chunk_size.
func (in *Ingestor) Process(path, category string) ([]*models.RetrievalUnit, error) {
	texts, err := in.Load(path, category)
	if err != nil {
		return nil, err
	}
	var units []*models.RetrievalUnit
	chunkID := 0
	for _, t := range texts {
		for _, seg := range in.chunker.Split(t.Text) {
			if strings.TrimSpace(seg) == "" {
				continue
			}
			extra := t.Metadata.Clone()
			extra[models.KeyChunkID] = chunkID
			extra[models.KeyChunkSize] = utf8.RuneCountInString(seg)
			unit := in.registry.Enrich(&models.RetrievalUnit{Content: seg}, extra)
			if err := in.registry.Check(unit); err != nil {
				return nil, fmt.Errorf("chunk %d of %s: %w", chunkID, path, err)
			}
			units = append(units, unit)
			chunkID++
		}
	}
	return units, nil
}

// ListFiles returns the supported files under dir in lexical order. Extension matching is
// case-insensitive. With recursive false only the top level is listed.
func ListFiles(dir string, recursive bool) ([]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", abs)
	}
	pattern := "*"
	if recursive {
		pattern = "**/*"
	}
	matches, err := doublestar.Glob(os.DirFS(abs), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", abs, err)
	}
	var files []string
	for _, m := range matches {
		if extract.IsSupported(m) {
			files = append(files, filepath.Join(abs, filepath.FromSlash(m)))
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadDirectory loads every supported file under dir. A failing file is logged and recorded in
// its report item; it never aborts the batch. Only an unreadable dir is returned as an error.
func (in *Ingestor) LoadDirectory(ctx context.Context, dir string, recursive bool) (*models.BatchReport, error) {
	return in.eachFile(ctx, dir, recursive, func(path string, item *models.ItemResult) {
		item.Texts, item.Err = in.Load(path, "")
	})
}

// ProcessDirectory is LoadDirectory followed by chunking and enrichment per file.
func (in *Ingestor) ProcessDirectory(ctx context.Context, dir string, recursive bool) (*models.BatchReport, error) {
	return in.eachFile(ctx, dir, recursive, func(path string, item *models.ItemResult) {
		item.Units, item.Err = in.Process(path, "")
	})
}

func (in *Ingestor) eachFile(ctx context.Context, dir string, recursive bool, fn func(string, *models.ItemResult)) (*models.BatchReport, error) {
	files, err := ListFiles(dir, recursive)
	if err != nil {
		return nil, err
	}
	report := &models.BatchReport{Items: make([]models.ItemResult, len(files))}
	if len(files) == 0 {
		return report, nil
	}
	pool, err := ants.NewPool(in.workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, path := range files {
		item := &report.Items[i]
		item.Path = path
		if err := ctx.Err(); err != nil {
			item.Err = err
			continue
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					item.Err = fmt.Errorf("panic while loading: %v", r)
				}
			}()
			fn(item.Path, item)
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			item.Err = fmt.Errorf("schedule load: %w", err)
		}
	}
	wg.Wait()

	for _, it := range report.Items {
		if it.Err != nil {
			in.logger.Warn("skipping file", zap.String("path", it.Path), zap.Error(it.Err))
		}
	}
	in.logger.Info("directory loaded",
		zap.String("dir", dir),
		zap.Int("files", len(files)),
		zap.Int("failed", len(report.Failed())),
	)
	return report, nil
}
