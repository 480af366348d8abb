package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"authgrid/api/internal/config"
	"authgrid/api/internal/models"
)

// ArchiveStore ships audit trail extracts to object storage, one JSON-lines
// object per exported day.
type ArchiveStore struct {
	client *minio.Client
	cfg    config.ArchiveConfig
}

func NewArchiveStore(cfg config.ArchiveConfig) (*ArchiveStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ArchiveStore{
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *ArchiveStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.cfg.Bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, err)
		}
	}
	return nil
}

// PutEntries writes the entries as one JSON-lines object keyed by day.
// Re-exporting the same day overwrites the previous object.
func (s *ArchiveStore) PutEntries(ctx context.Context, day time.Time, entries []models.AuditEntry) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return "", fmt.Errorf("encode audit entry %s: %w", e.ID, err)
		}
	}

	key := fmt.Sprintf("audit/%s.jsonl", day.UTC().Format("2006-01-02"))
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}
