package blobstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
)

func seedBlob(t *testing.T, store BlobStore, patientID, category, fileName, content string) *BlobMetadata {
	t.Helper()
	meta := BlobMetadata{
		FileName:    fileName,
		ContentType: "text/plain",
		PatientID:   patientID,
		Category:    category,
		CreatedBy:   "test-user",
	}
	result, err := store.Upload(context.Background(), meta, strings.NewReader(content))
	if err != nil {
		t.Fatalf("seedBlob: %v", err)
	}
	return result
}

func TestInMemoryBlobStore_UploadDownload(t *testing.T) {
	store := NewInMemoryBlobStore()
	uploaded := seedBlob(t, store, "patient-1", "discharge-summary", "summary.txt", "hello world")

	if !strings.HasPrefix(uploaded.Key, "patients/patient-1/discharge-summary/") {
		t.Errorf("unexpected key %q", uploaded.Key)
	}
	if !strings.HasSuffix(uploaded.Key, "-summary.txt") {
		t.Errorf("expected key to end with file name, got %q", uploaded.Key)
	}
	if uploaded.Size != int64(len("hello world")) {
		t.Errorf("expected size=%d, got %d", len("hello world"), uploaded.Size)
	}
	if uploaded.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	rc, meta, err := store.Download(context.Background(), uploaded.Key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "hello world" {
		t.Errorf("expected content 'hello world', got %q", string(data))
	}
	if meta.CreatedBy != "test-user" {
		t.Errorf("expected created_by=test-user, got %s", meta.CreatedBy)
	}
}

func TestInMemoryBlobStore_DownloadNotFound(t *testing.T) {
	store := NewInMemoryBlobStore()
	_, _, err := store.Download(context.Background(), "patients/x/other/missing.txt")
	if !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestInMemoryBlobStore_UploadValidation(t *testing.T) {
	store := NewInMemoryBlobStore()

	_, err := store.Upload(context.Background(), BlobMetadata{PatientID: "p1"}, strings.NewReader("x"))
	if !errors.Is(err, ErrMissingFileName) {
		t.Errorf("expected ErrMissingFileName, got %v", err)
	}
	_, err = store.Upload(context.Background(), BlobMetadata{FileName: "a.txt"}, strings.NewReader("x"))
	if !errors.Is(err, ErrMissingPatient) {
		t.Errorf("expected ErrMissingPatient, got %v", err)
	}

	big := strings.NewReader(strings.Repeat("a", MaxFileSize+1))
	_, err = store.Upload(context.Background(), BlobMetadata{FileName: "big.txt", PatientID: "p1"}, big)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestInMemoryBlobStore_SHA256Hash(t *testing.T) {
	store := NewInMemoryBlobStore()
	content := "compute-my-hash"

	uploaded := seedBlob(t, store, "p1", "other", "hash.txt", content)

	expected := fmt.Sprintf("%x", sha256.Sum256([]byte(content)))
	if uploaded.Hash != expected {
		t.Errorf("expected hash=%s, got %s", expected, uploaded.Hash)
	}
}

func TestInMemoryBlobStore_ListByPatient(t *testing.T) {
	store := NewInMemoryBlobStore()
	seedBlob(t, store, "p1", "discharge-summary", "a.txt", "a")
	seedBlob(t, store, "p1", "other", "b.txt", "b")
	seedBlob(t, store, "p2", "discharge-summary", "c.txt", "c")

	all, err := store.ListByPatient(context.Background(), "p1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 blobs for p1, got %d", len(all))
	}

	summaries, _ := store.ListByPatient(context.Background(), "p1", "discharge-summary")
	if len(summaries) != 1 || summaries[0].FileName != "a.txt" {
		t.Errorf("expected only a.txt, got %v", summaries)
	}
}

func TestInMemoryBlobStore_ConcurrentAccess(t *testing.T) {
	store := NewInMemoryBlobStore()
	var wg sync.WaitGroup
	const goroutines = 50

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(n int) {
			defer wg.Done()
			meta := BlobMetadata{
				FileName:  fmt.Sprintf("file-%d.txt", n),
				PatientID: "concurrent-patient",
				Category:  "other",
			}
			result, err := store.Upload(context.Background(), meta, strings.NewReader(fmt.Sprintf("content-%d", n)))
			if err != nil {
				t.Errorf("upload goroutine %d: %v", n, err)
				return
			}
			rc, _, err := store.Download(context.Background(), result.Key)
			if err != nil {
				t.Errorf("download goroutine %d: %v", n, err)
				return
			}
			rc.Close()
		}(i)
	}
	wg.Wait()

	results, err := store.ListByPatient(context.Background(), "concurrent-patient", "")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(results) != goroutines {
		t.Errorf("expected %d results, got %d", goroutines, len(results))
	}
}

func TestMetadataFromObject(t *testing.T) {
	modified := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	info := minio.ObjectInfo{
		Key:          "patients/p9/discharge-summary/abc-summary.txt",
		ContentType:  "text/plain",
		Size:         42,
		LastModified: modified,
		UserMetadata: map[string]string{
			"X-Amz-Meta-" + metaCategory: "discharge-summary",
			metaCreatedBy:                "Dr Who",
		},
		Metadata: http.Header{},
	}

	meta := metadataFromObject(info)
	if meta.PatientID != "p9" {
		t.Errorf("expected patient p9 from key, got %q", meta.PatientID)
	}
	if meta.Category != "discharge-summary" {
		t.Errorf("expected prefixed metadata to be read, got %q", meta.Category)
	}
	if meta.CreatedBy != "Dr Who" {
		t.Errorf("expected bare metadata to be read, got %q", meta.CreatedBy)
	}
	if meta.FileName != "abc-summary.txt" {
		t.Errorf("expected file name from key, got %q", meta.FileName)
	}
	if !meta.CreatedAt.Equal(modified) {
		t.Errorf("expected CreatedAt %v, got %v", modified, meta.CreatedAt)
	}
}

func TestUserMetadataRoundTripKeys(t *testing.T) {
	um := userMetadata(BlobMetadata{PatientID: "p1", Category: "c", FileName: "f", Hash: "h", CreatedBy: "u"})
	if len(um) != 5 || um[metaPatient] != "p1" || um[metaHash] != "h" {
		t.Errorf("unexpected user metadata %v", um)
	}
}
