package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/castline/castline/internal/config"
	"github.com/castline/castline/internal/db/models"
	"github.com/castline/castline/pkg/checksum"
)

// putObjectAPI is the subset of the S3 client used by the archive shipper.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Shipper archives ledger entries to an S3-compatible bucket as newline-delimited
// JSON objects keyed <prefix>/YYYY/MM/DD/<unix-nanos>-<uuid>.jsonl. Entries are
// buffered and written when the batch fills, on the flush interval, and on Close.
type S3Shipper struct {
	client        putObjectAPI
	bucket        string
	prefix        string
	batchSize     int
	flushInterval time.Duration

	mu        sync.Mutex
	batch     []*models.AuditLog
	closeCh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewS3Shipper creates an archive shipper. Static credentials are used when both
// keys are set; otherwise the AWS default credential chain applies.
func NewS3Shipper(ctx context.Context, cfg *config.AuditS3Config) (*S3Shipper, error) {
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newS3Shipper(client, cfg), nil
}

func newS3Client(ctx context.Context, cfg *config.AuditS3Config) (*s3.Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// S3-compatible services generally require path-style addressing
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

func newS3Shipper(client putObjectAPI, cfg *config.AuditS3Config) *S3Shipper {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := time.Duration(cfg.FlushInterval) * time.Second
	if flushInterval <= 0 {
		flushInterval = time.Minute
	}

	s := &S3Shipper{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        cfg.Prefix,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		batch:         make([]*models.AuditLog, 0, batchSize),
		closeCh:       make(chan struct{}),
		done:          make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *S3Shipper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.flush(context.Background()); err != nil {
				slog.Error("failed to archive ledger batch", "bucket", s.bucket, "error", err)
			}
		case <-s.closeCh:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := s.flush(ctx); err != nil {
				slog.Error("failed to archive ledger batch on close", "bucket", s.bucket, "error", err)
			}
			cancel()
			return
		}
	}
}

// Ship buffers entry and writes the batch once it is full.
func (s *S3Shipper) Ship(ctx context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	s.batch = append(s.batch, entry)
	full := len(s.batch) >= s.batchSize
	s.mu.Unlock()

	if full {
		return s.flush(ctx)
	}
	return nil
}

// flush writes buffered entries as one object. On failure the entries stay buffered
// for the next attempt.
func (s *S3Shipper) flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.batch) == 0 {
		s.mu.Unlock()
		return nil
	}
	pending := s.batch
	s.batch = make([]*models.AuditLog, 0, s.batchSize)
	s.mu.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, entry := range pending {
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("failed to marshal ledger entry %s: %w", entry.ID, err)
		}
	}

	sum, err := checksum.SumArchive(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return err
	}

	key := s.objectKey(pending[0].CreatedAt)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(int64(buf.Len())),
		ContentType:   aws.String("application/x-ndjson"),
		Metadata:      sum.Metadata(),
	})
	if err != nil {
		s.mu.Lock()
		s.batch = append(pending, s.batch...)
		s.mu.Unlock()
		return fmt.Errorf("failed to upload ledger archive %s: %w", key, err)
	}
	return nil
}

func (s *S3Shipper) objectKey(first time.Time) string {
	if first.IsZero() {
		first = time.Now()
	}
	first = first.UTC()
	name := fmt.Sprintf("%d-%s.jsonl", first.UnixNano(), uuid.New().String())
	return path.Join(s.prefix, first.Format("2006"), first.Format("01"), first.Format("02"), name)
}

// Close flushes buffered entries and stops the background flusher
func (s *S3Shipper) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeCh)
	})
	<-s.done
	return nil
}

// getObjectAPI is the subset of the S3 client used to read archives back.
type getObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ArchiveVerifier reads archived ledger objects and checks them against the
// integrity tag written by S3Shipper.
type ArchiveVerifier struct {
	client getObjectAPI
	bucket string
}

// NewArchiveVerifier builds a verifier for the bucket of an s3 shipper config.
func NewArchiveVerifier(ctx context.Context, cfg *config.AuditS3Config) (*ArchiveVerifier, error) {
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &ArchiveVerifier{client: client, bucket: cfg.Bucket}, nil
}

// Verify downloads key and returns its checksum and entry count. A body that
// does not match its metadata returns an error wrapping checksum.ErrChecksumMismatch
// or checksum.ErrEntryCountMismatch.
func (v *ArchiveVerifier) Verify(ctx context.Context, key string) (checksum.ArchiveSum, error) {
	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return checksum.ArchiveSum{}, fmt.Errorf("failed to fetch ledger archive %s: %w", key, err)
	}
	defer out.Body.Close()

	sum, err := checksum.VerifyArchive(out.Body, out.Metadata)
	if err != nil {
		return sum, fmt.Errorf("ledger archive %s: %w", key, err)
	}
	return sum, nil
}
