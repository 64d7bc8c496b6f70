// Package document inspects uploaded files for real metadata (page
// counts, file names) used to seed submissions.
package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/docuflow/approval-engine/internal/application/port"
	"github.com/docuflow/approval-engine/internal/domain/entity"
	"github.com/docuflow/approval-engine/pkg/utils"
)

// Inspector extracts metadata from PDF documents using mupdf
type Inspector struct {
	logger *zap.Logger
}

// NewInspector creates a new document inspector
func NewInspector(logger *zap.Logger) *Inspector {
	return &Inspector{logger: logger}
}

// Inspect opens the file and reports its metadata. Only PDFs yield a
// page count; other file types pass through with count zero.
func (i *Inspector) Inspect(ctx context.Context, path string) (*entity.DocumentInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("document not found: %w", err)
	}

	info := &entity.DocumentInfo{
		FileName:   filepath.Base(path),
		UploadDate: stat.ModTime(),
	}

	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		return info, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := fitz.New(path)
	if err != nil {
		i.logger.Warn("Failed to open PDF",
			zap.String("path", path),
			zap.Error(err))
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	info.PageCount = doc.NumPage()

	i.logger.Debug("Document inspected",
		zap.String("file_name", info.FileName),
		zap.Int("page_count", info.PageCount))

	return info, nil
}

// FileDocumentStore is a directory-backed port.DocumentStore: document
// IDs are file names inside a root directory. Real deployments swap in a
// proper store behind the same port.
type FileDocumentStore struct {
	root       string
	department string
	inspector  *Inspector
	logger     *zap.Logger
}

// NewFileDocumentStore creates a document store rooted at dir. Files are
// attributed to the given default department.
func NewFileDocumentStore(dir, department string, inspector *Inspector, logger *zap.Logger) *FileDocumentStore {
	return &FileDocumentStore{
		root:       dir,
		department: department,
		inspector:  inspector,
		logger:     logger,
	}
}

// GetDocument resolves a document ID to its metadata.
func (s *FileDocumentStore) GetDocument(ctx context.Context, documentID string) (*entity.DocumentInfo, error) {
	if err := utils.ValidateDocumentID(documentID); err != nil {
		return nil, fmt.Errorf("invalid document id: %w", err)
	}

	path := filepath.Join(s.root, documentID)
	info, err := s.inspector.Inspect(ctx, path)
	if err != nil {
		return nil, err
	}

	info.DocumentID = documentID
	if info.Department == "" {
		info.Department = s.department
	}
	if info.UploadDate.IsZero() {
		info.UploadDate = time.Now()
	}

	return info, nil
}

var (
	_ port.DocumentInspector = (*Inspector)(nil)
	_ port.DocumentStore     = (*FileDocumentStore)(nil)
)
