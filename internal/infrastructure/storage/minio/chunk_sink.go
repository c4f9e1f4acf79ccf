// Package minio uploads subset results as chunked TSV objects, one prefix per
// run, so very large subsets never accumulate in memory or on local disk.
package minio

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/moleculab/synthon-sieve/internal/application/subsetting"
	"github.com/moleculab/synthon-sieve/internal/config"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
	"github.com/moleculab/synthon-sieve/pkg/errors"
)

const defaultChunkSize = 100_000

// ChunkSink is a subsetting.Sink that buffers verdicts as TSV rows and
// uploads them in fixed-size chunks under <bucket>/<run-id>/chunk-NNNNN.tsv.
// Each chunk carries its own header row, so chunks are individually readable.
type ChunkSink struct {
	client    *minio.Client
	bucket    string
	runID     string
	chunkSize int
	log       logging.Logger

	buf   bytes.Buffer
	tsv   *subsetting.TSVSink
	rows  int
	chunk int
}

// NewChunkSink connects to the object store, creates the bucket when missing,
// and returns a sink for the given run.
func NewChunkSink(ctx context.Context, cfg config.MinioConfig, runID string, log logging.Logger) (*ChunkSink, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.CodeInvalidParam, "minio endpoint is empty")
	}
	if cfg.Bucket == "" {
		return nil, errors.New(errors.CodeInvalidParam, "minio bucket is empty")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeServiceUnavailable, "minio client creation failed")
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeServiceUnavailable, "check bucket existence")
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrap(err, errors.CodeServiceUnavailable, "create bucket")
		}
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	s := &ChunkSink{
		client:    client,
		bucket:    cfg.Bucket,
		runID:     runID,
		chunkSize: chunkSize,
		log:       log.Named("minio"),
	}
	s.tsv = subsetting.NewTSVSink(&s.buf)
	return s, nil
}

// Write implements subsetting.Sink.
func (s *ChunkSink) Write(ctx context.Context, v subsetting.Verdict) error {
	if err := s.tsv.Write(ctx, v); err != nil {
		return err
	}
	s.rows++
	if s.rows >= s.chunkSize {
		return s.flush(ctx)
	}
	return nil
}

// Close implements subsetting.Sink, uploading any partial final chunk.
func (s *ChunkSink) Close(ctx context.Context) error {
	if s.rows > 0 {
		if err := s.flush(ctx); err != nil {
			return err
		}
	}
	s.log.Info("subset upload complete",
		logging.String("run_id", s.runID),
		logging.Int("chunks", s.chunk))
	return nil
}

func (s *ChunkSink) flush(ctx context.Context) error {
	object := fmt.Sprintf("%s/chunk-%05d.tsv", s.runID, s.chunk)
	_, err := s.client.PutObject(ctx, s.bucket, object,
		bytes.NewReader(s.buf.Bytes()), int64(s.buf.Len()),
		minio.PutObjectOptions{ContentType: "text/tab-separated-values"})
	if err != nil {
		return errors.Wrap(err, errors.CodeSinkFailed, "upload chunk")
	}

	s.log.Debug("chunk uploaded",
		logging.String("object", object),
		logging.Int("rows", s.rows))

	s.chunk++
	s.rows = 0
	s.buf.Reset()
	s.tsv = subsetting.NewTSVSink(&s.buf)
	return nil
}
