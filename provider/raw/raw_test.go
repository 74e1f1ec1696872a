package raw

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	media_courier "github.com/dmaltsev/media-courier"
)

func TestMatch(t *testing.T) {
	config := NewConfig()

	src, err := config.Match("https://example.com/path/video.mp4")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/path/video.mp4", src.URL())

	for name, url := range map[string]string{
		"bad scheme":        "ftp://example.com/video.mp4",
		"no extension":      "https://example.com/video",
		"unknown extension": "https://example.com/video.exe",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.Match(url)
			assert.Error(t, err)
		})
	}
}

func TestDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "video bytes")
	}))
	defer server.Close()

	config := NewConfig()
	src, err := config.Match(server.URL + "/video.mp4")
	require.NoError(t, err)

	resolved, err := src.Recon(context.Background())
	require.NoError(t, err)

	d, err := media_courier.NewDownloadBuilder().
		WithWorkRoot(t.TempDir()).
		WithStem("my stem").
		Build()
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, resolved.Download(d))
	path := d.FindFile("my stem")
	require.NotEmpty(t, path)
	assert.Equal(t, "my stem.mp4", filepath.Base(path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "video bytes", string(content))
}
