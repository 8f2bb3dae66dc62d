package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/andresuchdata/reorderpoint/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	objects    []storage.ObjectInfo
	downloaded []string
}

func (b *fakeBucket) ListObjects(context.Context, string) ([]storage.ObjectInfo, error) {
	return b.objects, nil
}

func (b *fakeBucket) DownloadObject(_ context.Context, key, destPath string) error {
	b.downloaded = append(b.downloaded, key)
	return os.WriteFile(destPath, []byte("product_id,date,quantity,unit_cost\n"), 0o644)
}

func (b *fakeBucket) UploadObject(context.Context, string, []byte) error { return nil }

func (b *fakeBucket) UploadFile(context.Context, string, string) error { return nil }

func TestBucketDownloader_ListsFactFiles(t *testing.T) {
	bucket := &fakeBucket{objects: []storage.ObjectInfo{
		{Key: "facts/2024-02.csv"},
		{Key: "facts/readme.txt"},
		{Key: "facts/archive/2024-01.xlsx"},
	}}
	dir := t.TempDir()

	paths, err := newBucketDownloader(bucket, dir).download(context.Background(), "facts/", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"facts/2024-02.csv", "facts/archive/2024-01.xlsx"}, bucket.downloaded)
	assert.Equal(t, []string{
		filepath.Join(dir, "2024-02.csv"),
		filepath.Join(dir, "archive", "2024-01.xlsx"),
	}, paths)
}

func TestBucketDownloader_NoFiles(t *testing.T) {
	bucket := &fakeBucket{objects: []storage.ObjectInfo{{Key: "facts/notes.md"}}}

	_, err := newBucketDownloader(bucket, t.TempDir()).download(context.Background(), "facts/", "")
	assert.Error(t, err)
}

func TestResolveObjectKey(t *testing.T) {
	assert.Equal(t, "facts/jan.csv", resolveObjectKey("facts/", "jan.csv"))
	assert.Equal(t, "facts/jan.csv", resolveObjectKey("facts", "/facts/jan.csv"))
	assert.Equal(t, "jan.csv", resolveObjectKey("", "/jan.csv"))
}

func TestObjectRelativePath(t *testing.T) {
	assert.Equal(t, "archive/jan.csv", objectRelativePath("facts/", "facts/archive/jan.csv"))
	assert.Equal(t, "jan.csv", objectRelativePath("facts", "other/jan.csv"))
	assert.Equal(t, "other/jan.csv", objectRelativePath("", "other/jan.csv"))
}
