package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"MarketState/internal/domain/models"
	domrepo "MarketState/internal/domain/repository"
	applogger "MarketState/pkg/logger"
)

type analysisDocument struct {
	Analyses []models.AnalysisRecord `json:"analyses"`
}

// FileAnalysisStore keeps every record in one JSON document on disk.
// The whole document is rewritten on each change.
type FileAnalysisStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
	l    *applogger.Logger
}

func NewFileAnalysisStore(path string, l *applogger.Logger) *FileAnalysisStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &FileAnalysisStore{path: path, now: time.Now, l: l}
}

func (s *FileAnalysisStore) load() (analysisDocument, error) {
	var doc analysisDocument
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(b) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return doc, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileAnalysisStore) write(doc analysisDocument) error {
	if doc.Analyses == nil {
		doc.Analyses = []models.AnalysisRecord{}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode analyses: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileAnalysisStore) Save(_ context.Context, rec models.AnalysisRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", err
	}
	rec.ID = uuid.NewString()
	rec.Timestamp = s.now().Local().Format(models.RecordTimeLayout)
	rec.Feedback = models.Feedback{}
	doc.Analyses = append(doc.Analyses, rec)
	if err := s.write(doc); err != nil {
		s.l.Error("analysis save failed", applogger.String("ticker", rec.Ticker), applogger.Error(err))
		return "", err
	}
	return rec.ID, nil
}

// Recent returns up to limit records, newest first.
func (s *FileAnalysisStore) Recent(_ context.Context, limit int) ([]models.AnalysisRecord, error) {
	s.mu.Lock()
	doc, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	n := len(doc.Analyses)
	start := n - limit
	if start < 0 || limit <= 0 {
		start = 0
	}
	out := make([]models.AnalysisRecord, 0, n-start)
	for i := n - 1; i >= start; i-- {
		out = append(out, doc.Analyses[i])
	}
	return out, nil
}

func (s *FileAnalysisStore) UpdateFeedback(_ context.Context, id string, success bool, remark string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	for i := range doc.Analyses {
		if doc.Analyses[i].ID == id {
			doc.Analyses[i].Feedback = models.Feedback{Submitted: true, Success: success, Remark: remark}
			return s.write(doc)
		}
	}
	return domrepo.ErrNotFound
}

func (s *FileAnalysisStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	for i := range doc.Analyses {
		if doc.Analyses[i].ID == id {
			doc.Analyses = append(doc.Analyses[:i], doc.Analyses[i+1:]...)
			return s.write(doc)
		}
	}
	return domrepo.ErrNotFound
}

func (s *FileAnalysisStore) Successful(_ context.Context, limit int) ([]models.AnalysisRecord, error) {
	return s.withFeedback(true, limit)
}

func (s *FileAnalysisStore) Failed(_ context.Context, limit int) ([]models.AnalysisRecord, error) {
	return s.withFeedback(false, limit)
}

// withFeedback scans oldest first and stops after limit matches.
func (s *FileAnalysisStore) withFeedback(success bool, limit int) ([]models.AnalysisRecord, error) {
	s.mu.Lock()
	doc, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]models.AnalysisRecord, 0)
	for _, rec := range doc.Analyses {
		if limit > 0 && len(out) >= limit {
			break
		}
		if rec.Feedback.Submitted && rec.Feedback.Success == success {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *FileAnalysisStore) Close() error { return nil }

var _ domrepo.AnalysisStore = (*FileAnalysisStore)(nil)
