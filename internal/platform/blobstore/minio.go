package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// User metadata keys stored on each object.
const (
	metaPatient   = "Patient-Id"
	metaCategory  = "Category"
	metaFileName  = "File-Name"
	metaHash      = "Sha256"
	metaCreatedBy = "Created-By"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioBlobStore stores blobs as objects in a single bucket.
type MinioBlobStore struct {
	client *minio.Client
	bucket string
}

func NewMinioBlobStore(cfg MinioConfig) (*MinioBlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinioBlobStore{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioBlobStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *MinioBlobStore) Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}
	_, err = s.client.PutObject(ctx, s.bucket, meta.Key, bytes.NewReader(data), meta.Size, minio.PutObjectOptions{
		ContentType:  meta.ContentType,
		UserMetadata: userMetadata(meta),
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s/%s: %w", s.bucket, meta.Key, err)
	}
	return &meta, nil
}

func (s *MinioBlobStore) Download(ctx context.Context, key string) (io.ReadCloser, *BlobMetadata, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("stat object %s: %w", key, err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("get object %s: %w", key, err)
	}
	meta := metadataFromObject(info)
	return obj, &meta, nil
}

func (s *MinioBlobStore) ListByPatient(ctx context.Context, patientID, category string) ([]*BlobMetadata, error) {
	prefix := path.Join("patients", patientID) + "/"
	if category != "" {
		prefix = path.Join("patients", patientID, category) + "/"
	}
	var out []*BlobMetadata
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:       prefix,
		Recursive:    true,
		WithMetadata: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, obj.Err)
		}
		m := metadataFromObject(obj)
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func userMetadata(meta BlobMetadata) map[string]string {
	return map[string]string{
		metaPatient:   meta.PatientID,
		metaCategory:  meta.Category,
		metaFileName:  meta.FileName,
		metaHash:      meta.Hash,
		metaCreatedBy: meta.CreatedBy,
	}
}

// metadataFromObject rebuilds BlobMetadata from object info. MinIO returns
// user metadata with or without the X-Amz-Meta- prefix depending on the
// call, so both forms are accepted.
func metadataFromObject(info minio.ObjectInfo) BlobMetadata {
	get := func(k string) string {
		if v, ok := info.UserMetadata[k]; ok {
			return v
		}
		if v, ok := info.UserMetadata["X-Amz-Meta-"+k]; ok {
			return v
		}
		return info.Metadata.Get("X-Amz-Meta-" + k)
	}
	meta := BlobMetadata{
		Key:         info.Key,
		ContentType: info.ContentType,
		Size:        info.Size,
		PatientID:   get(metaPatient),
		Category:    get(metaCategory),
		FileName:    get(metaFileName),
		Hash:        get(metaHash),
		CreatedBy:   get(metaCreatedBy),
		CreatedAt:   info.LastModified.UTC(),
	}
	if meta.FileName == "" {
		meta.FileName = path.Base(info.Key)
	}
	if meta.PatientID == "" {
		if parts := strings.Split(info.Key, "/"); len(parts) > 2 && parts[0] == "patients" {
			meta.PatientID = parts[1]
		}
	}
	return meta
}
