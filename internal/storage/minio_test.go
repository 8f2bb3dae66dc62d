package storage

import (
	"testing"

	"github.com/andresuchdata/reorderpoint/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in       string
		useSSL   bool
		endpoint string
		secure   bool
	}{
		{"https://s3.example.com/", false, "s3.example.com", true},
		{"http://minio:9000", true, "minio:9000", false},
		{"minio:9000", true, "minio:9000", true},
		{"//minio:9000", false, "minio:9000", false},
	}

	for _, tt := range tests {
		endpoint, secure := normalizeEndpoint(tt.in, tt.useSSL)
		assert.Equal(t, tt.endpoint, endpoint, tt.in)
		assert.Equal(t, tt.secure, secure, tt.in)
	}
}

func TestNewMinioClient_Validation(t *testing.T) {
	_, err := NewMinioClient(config.StorageConfig{})
	assert.Error(t, err)

	_, err = NewMinioClient(config.StorageConfig{Endpoint: "minio:9000", Bucket: "b"})
	assert.Error(t, err)

	c, err := NewMinioClient(config.StorageConfig{
		Endpoint:  "http://minio:9000",
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "reports",
	})
	require.NoError(t, err)
	assert.Equal(t, "reports", c.bucket)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", contentType("backfill/run-1.csv"))
	assert.Equal(t, "application/octet-stream", contentType("facts.xlsx"))
}
