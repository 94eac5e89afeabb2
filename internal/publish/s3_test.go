package publish

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-music-looper/internal/config"
)

func testConfig(endpoint string) S3Config {
	return S3Config{
		Bucket:          "loops",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		Prefix:          "/videos/",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}
}

func TestNewS3Uploader_NotConfigured(t *testing.T) {
	_, err := NewS3Uploader(context.Background(), S3Config{Bucket: "b"})
	assert.True(t, errors.Is(err, ErrNotConfigured))

	_, err = NewS3Uploader(context.Background(), S3Config{Region: "us-east-1"})
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestConfigFromEnv(t *testing.T) {
	env := &config.Env{
		S3Bucket:           "b",
		S3Region:           "eu-west-1",
		S3Endpoint:         "http://minio:9000",
		S3Prefix:           "loops",
		AWSAccessKeyID:     "id",
		AWSSecretAccessKey: "secret",
	}

	cfg := ConfigFromEnv(env)
	assert.Equal(t, S3Config{
		Bucket:          "b",
		Region:          "eu-west-1",
		Endpoint:        "http://minio:9000",
		Prefix:          "loops",
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
	}, cfg)
}

func TestS3Uploader_KeyAndURL(t *testing.T) {
	u, err := NewS3Uploader(context.Background(), testConfig(""))
	require.NoError(t, err)

	key := u.Key("/home/me/Videos/rain_music_loop.mp4")
	assert.Equal(t, "videos/rain_music_loop.mp4", key)
	assert.Equal(t, "https://loops.s3.us-east-1.amazonaws.com/videos/rain_music_loop.mp4", u.URL(key))

	custom, err := NewS3Uploader(context.Background(), testConfig("http://localhost:9000/"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/loops/a.mp4", custom.URL("a.mp4"))
}

func TestS3Uploader_UploadFile_MockServer(t *testing.T) {
	var gotPath, gotBody, gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT method, got %s", r.Method)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		gotPath = r.URL.Path
		gotBody = string(body)
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	file := filepath.Join(t.TempDir(), "rain_music_loop.mp4")
	require.NoError(t, os.WriteFile(file, []byte("video bytes"), 0o644))

	u, err := NewS3Uploader(context.Background(), testConfig(server.URL))
	require.NoError(t, err)

	url, err := u.UploadFile(context.Background(), file)
	require.NoError(t, err)

	assert.Equal(t, "/loops/videos/rain_music_loop.mp4", gotPath)
	assert.Contains(t, gotBody, "video bytes")
	assert.Equal(t, "video/mp4", gotType)
	assert.Equal(t, server.URL+"/loops/videos/rain_music_loop.mp4", url)
}

func TestS3Uploader_UploadFile_MissingFile(t *testing.T) {
	u, err := NewS3Uploader(context.Background(), testConfig("http://localhost:1"))
	require.NoError(t, err)

	_, err = u.UploadFile(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")
}
