package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/gcsuploader"
	"github.com/dvloznov/statement-reconciler/internal/logger"
)

// Extractor turns file bytes into a FileResult.
type Extractor interface {
	ProcessBytes(ctx context.Context, name string, data []byte) domain.FileResult
}

// SourceReader loads the bytes behind a job source.
type SourceReader func(ctx context.Context, source string) ([]byte, error)

// ResultSink receives each finished extraction, e.g. to persist it.
type ResultSink func(ctx context.Context, job *ExtractFileJob) error

// NewSourceReader reads gs:// URIs through storage and everything else
// from the local filesystem. storage may be nil when no GCS access is set up.
func NewSourceReader(storage gcsuploader.StorageService) SourceReader {
	return func(ctx context.Context, source string) ([]byte, error) {
		if gcsuploader.IsGCSURI(source) {
			if storage == nil {
				return nil, fmt.Errorf("NewSourceReader: no storage configured for %s", source)
			}
			return storage.FetchFromGCS(ctx, source)
		}
		return os.ReadFile(source)
	}
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ExtractHandler runs extraction jobs. Read and sink errors are returned so
// the queue retries them; extraction failures are final and travel in the
// job result.
func ExtractHandler(ex Extractor, read SourceReader, sink ResultSink) JobHandler {
	return func(ctx context.Context, job Job) error {
		j, ok := job.(*ExtractFileJob)
		if !ok {
			return fmt.Errorf("ExtractHandler: unexpected job type %s", job.GetType())
		}

		name := j.FileName
		if name == "" {
			name = filepath.Base(j.Source)
			if gcsuploader.IsGCSURI(j.Source) {
				name = gcsuploader.ExtractFilenameFromGCSURI(j.Source)
			}
			j.FileName = name
		}

		data := j.Data
		if data == nil {
			var err error
			data, err = read(ctx, j.Source)
			if err != nil {
				return fmt.Errorf("ExtractHandler: reading %s: %w", j.Source, err)
			}
		}
		j.Checksum = Checksum(data)

		ctx = logger.WithFile(ctx, name)
		log := logger.FromContext(ctx)

		res := ex.ProcessBytes(ctx, name, data)
		j.Result = &res
		log.Info().Str("job_id", j.JobID).Str("method", string(res.Method)).Int("transactions", len(res.Transactions)).Msg("Extraction job finished")

		if sink != nil {
			if err := sink(ctx, j); err != nil {
				return fmt.Errorf("ExtractHandler: storing result: %w", err)
			}
		}
		return nil
	}
}
