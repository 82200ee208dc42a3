package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sekolah_go/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNotConfigured is returned when no bucket is configured
var ErrNotConfigured = errors.New("object storage not configured")

// ObjectStore keeps archives and reports outside the database
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// StorageService stores objects in an S3 bucket
type StorageService struct {
	s3Client *s3.Client
	bucket   string
}

// NewStorageService builds an S3-backed store from the AWS default credential chain
func NewStorageService(ctx context.Context, cfg *config.Config) (*StorageService, error) {
	if cfg == nil || cfg.S3BucketName == "" {
		return nil, ErrNotConfigured
	}
	awsConf, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &StorageService{
		s3Client: s3.NewFromConfig(awsConf),
		bucket:   cfg.S3BucketName,
	}, nil
}

// Put uploads body under key
func (s *StorageService) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Get downloads the object under key; the caller closes the reader
func (s *StorageService) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	return out.Body, nil
}

// LocalStore keeps objects on disk. It backs development setups without a bucket.
type LocalStore struct {
	Root string
}

// path roots the cleaned key under Root so keys cannot escape it
func (l LocalStore) path(key string) string {
	return filepath.Join(l.Root, filepath.Clean("/"+key))
}

func (l LocalStore) Put(_ context.Context, key string, body []byte, _ string) error {
	p := l.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, body, 0o644)
}

func (l LocalStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	return os.Open(l.path(key))
}

// MemoryStore keeps objects in memory
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, key string, body []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), body...)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

// Keys lists stored keys
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}

// New picks S3 when a bucket is configured and a local directory otherwise
func New(ctx context.Context, cfg *config.Config) ObjectStore {
	s3Store, err := NewStorageService(ctx, cfg)
	if err == nil {
		return s3Store
	}
	if !errors.Is(err, ErrNotConfigured) {
		logrus.WithError(err).Warn("S3 unavailable, archiving to local disk")
	}
	return LocalStore{Root: "storage_data"}
}

// ObjectKey builds a dated, collision-free key such as
// "reports/2026/03/0f8c...-7A.xlsx".
func ObjectKey(folder string, at time.Time, name string) string {
	return fmt.Sprintf("%s/%d/%02d/%s-%s", strings.Trim(folder, "/"), at.Year(), at.Month(), uuid.NewString()[:8], name)
}
