package source

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/feral-file/ff-inspection-warehouse/internal/adapter"
	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/logger"
)

// batchFile is the on-disk form of a raw batch exported by the ingestion layer
type batchFile struct {
	SourceCity    domain.SourceCity `json:"source_city"`
	DeclaredCount *int              `json:"declared_count"`
	Records       []map[string]any  `json:"records"`
}

// Loader reads raw batches
type Loader interface {
	Load(ctx context.Context) ([]domain.RawBatch, error)
}

type fileLoader struct {
	dir  string
	fs   adapter.FileSystem
	json adapter.JSON
}

// NewFileLoader creates a loader reading every *.json batch file of dir
func NewFileLoader(dir string, fs adapter.FileSystem, json adapter.JSON) Loader {
	return &fileLoader{dir: dir, fs: fs, json: json}
}

// Load returns the batches in file name order
func (l *fileLoader) Load(ctx context.Context) ([]domain.RawBatch, error) {
	files, err := l.fs.Glob(filepath.Join(l.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list batch files: %w", err)
	}
	sort.Strings(files)

	batches := make([]domain.RawBatch, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := l.fs.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read batch file %s: %w", file, err)
		}

		var bf batchFile
		if err := l.json.Unmarshal(data, &bf); err != nil {
			return nil, fmt.Errorf("failed to decode batch file %s: %w", file, err)
		}
		if bf.SourceCity == "" {
			return nil, fmt.Errorf("batch file %s has no source_city", file)
		}

		batch := domain.RawBatch{
			SourceCity: bf.SourceCity,
			Records:    make([]domain.RawRecord, 0, len(bf.Records)),
		}
		for _, fields := range bf.Records {
			batch.Records = append(batch.Records, domain.RawRecord{Fields: fields})
		}
		// Files without a declared count declare what they carry
		batch.DeclaredCount = len(batch.Records)
		if bf.DeclaredCount != nil {
			batch.DeclaredCount = *bf.DeclaredCount
		}

		logger.InfoCtx(ctx, "Loaded raw batch",
			zap.String("file", file),
			zap.String("source_city", string(batch.SourceCity)),
			zap.Int("records", len(batch.Records)))
		batches = append(batches, batch)
	}

	return batches, nil
}
