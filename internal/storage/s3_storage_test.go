package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appconfig "github.com/tiendaweb/tienda-backend/config"
)

func newTestStorage(baseURL string) *S3Storage {
	return NewS3Storage(context.Background(), appconfig.S3Config{
		Region:          "eu-west-1",
		Bucket:          "tienda-test",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		BaseURL:         baseURL,
	})
}

func TestS3Storage_PresignProductImage(t *testing.T) {
	s := newTestStorage("")

	upload, err := s.PresignProductImage(context.Background(), "Taza.PNG", "image/png")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(upload.Key, ProductImageFolder+"/"))
	assert.True(t, strings.HasSuffix(upload.Key, ".png"))
	assert.Contains(t, upload.UploadURL, "X-Amz-Signature=")
	assert.Contains(t, upload.UploadURL, upload.Key)
	assert.Equal(t, "https://tienda-test.s3.eu-west-1.amazonaws.com/"+upload.Key, upload.FileURL)
}

func TestS3Storage_PublicURL_BaseURL(t *testing.T) {
	s := newTestStorage("https://cdn.tienda.test/")
	assert.Equal(t, "https://cdn.tienda.test/productos/a.png", s.PublicURL("productos/a.png"))
}

func TestS3Storage_RejectsContentType(t *testing.T) {
	s := newTestStorage("")

	_, err := s.PresignProductImage(context.Background(), "script.js", "application/javascript")
	assert.ErrorIs(t, err, ErrUnsupportedImageType)
}
