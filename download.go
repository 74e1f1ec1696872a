package media_courier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// A Download owns the uniquely named work directory for one acquisition job. All files produced
// by a ResolvedSource or an external tool land inside that directory, and Close removes the
// whole directory regardless of how far the job got.
type Download interface {
	// AddDownloadedBytes increases how many bytes have been successfully downloaded so far.
	AddDownloadedBytes(n int)

	// AddExpectedBytes increases how many bytes are expected to be downloaded.
	AddExpectedBytes(n int)

	// Cancel the Download, stopping any in-progress I/O activity.
	Cancel()

	// Close deletes the work directory and everything in it. Safe to call on every exit path.
	Close() error

	// Context is the cancellable context of this Download.
	Context() context.Context

	// CreateFile opens a new file inside the work directory.
	CreateFile(filename string) (io.WriteCloser, error)

	// Dir returns the absolute path of the work directory.
	Dir() string

	// FindFile returns the path of the first file in the work directory whose name starts with
	// prefix, or "" if there is none. External tools choose their own extension, so the caller
	// only knows the stem.
	FindFile(prefix string) string

	// Path returns the path a file with the given name would have inside the work directory.
	Path(filename string) string

	// Progress returns the downloaded and expected bytes of the download.
	Progress() (int, int)

	// SaveHTTPRequest will execute the http.Request with Context() and then download the
	// resulting stream like SaveStream.
	SaveHTTPRequest(filename string, req *http.Request) error

	// SaveStream will download the stream to the named file inside the work directory, calling
	// AddDownloadedBytes as necessary.
	SaveStream(filename string, stream io.Reader) error

	// SaveURL will make a GET request to the URL and then download the resulting stream like
	// SaveStream.
	SaveURL(filename string, url string) error

	// Stem is the sanitized file-name stem produced files should start with; the extension is
	// chosen by whatever produces the file.
	Stem() string

	// Write will ignore the data but will send the byte count to AddDownloadedBytes. Allows
	// progress tracking using io.MultiWriter (but ensure the Download is the last writer to
	// avoid counting failed writes).
	Write(p []byte) (n int, err error)
}

type download struct {
	ctx              context.Context
	cancel           context.CancelFunc
	progressCallback func(int, int)
	workDir          string
	stem             string
	expectedBytes    int
	downloadedBytes  int
}

func (d *download) AddDownloadedBytes(n int) {
	d.downloadedBytes += n
	if d.progressCallback != nil {
		d.progressCallback(d.Progress())
	}
}

func (d *download) AddExpectedBytes(n int) {
	d.expectedBytes += n
	if d.progressCallback != nil {
		d.progressCallback(d.Progress())
	}
}

func (d *download) Cancel() {
	d.cancel()
}

func (d *download) Close() error {
	d.cancel()
	if err := os.RemoveAll(d.workDir); err != nil {
		return fmt.Errorf("failed to delete work dir: %w", err)
	}
	return nil
}

func (d *download) Context() context.Context {
	return d.ctx
}

func (d *download) CreateFile(filename string) (io.WriteCloser, error) {
	return os.Create(d.Path(filename))
}

func (d *download) Dir() string {
	return d.workDir
}

func (d *download) FindFile(prefix string) string {
	entries, err := os.ReadDir(d.workDir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(d.workDir, names[0])
}

func (d *download) Path(filename string) string {
	return filepath.Join(d.workDir, filepath.Base(filename))
}

func (d *download) Stem() string {
	return d.stem
}

func (d *download) Progress() (int, int) {
	return d.downloadedBytes, d.expectedBytes
}

func (d *download) SaveHTTPRequest(filename string, req *http.Request) error {
	if req == nil {
		return fmt.Errorf("nil request")
	}
	req = req.WithContext(d.Context())
	client := http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("download failed: unexpected status %s", resp.Status)
	}
	d.AddExpectedBytes(int(resp.ContentLength))
	return d.SaveStream(filename, resp.Body)
}

func (d *download) SaveStream(filename string, stream io.Reader) error {
	f, err := d.CreateFile(filename)
	if err != nil {
		return fmt.Errorf("failed to open target file: %w", err)
	}
	defer f.Close()

	_, err = io.Copy(io.MultiWriter(f, d), &readerContext{d.ctx, stream})
	if err != nil {
		return fmt.Errorf("failed to save stream: %w", err)
	}
	return nil
}

func (d *download) SaveURL(filename string, url string) error {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return d.SaveHTTPRequest(filename, req)
}

func (d *download) Write(p []byte) (n int, err error) {
	n = len(p)
	d.AddDownloadedBytes(n)
	return n, nil
}

type DownloadBuilder interface {
	Build() (Download, error)
	WithContext(ctx context.Context) DownloadBuilder
	WithProgressCallback(f func(downloaded int, expected int)) DownloadBuilder
	// WithWorkDir names the work directory to create under the work root. Usually the job ID,
	// so concurrently running jobs never collide.
	WithWorkDir(name string) DownloadBuilder
	WithWorkRoot(root string) DownloadBuilder
	// WithStem sets the file-name stem produced files should use.
	WithStem(stem string) DownloadBuilder
}

type downloadBuilder struct {
	ctx              context.Context
	progressCallback func(int, int)
	workRoot         string
	workDirName      string
	stem             string
}

func NewDownloadBuilder() DownloadBuilder {
	return &downloadBuilder{
		ctx:      context.Background(),
		workRoot: os.TempDir(),
	}
}

func (b *downloadBuilder) Build() (Download, error) {
	d := download{}
	d.ctx, d.cancel = context.WithCancel(b.ctx)
	d.progressCallback = b.progressCallback
	d.stem = b.stem
	if b.workDirName == "" {
		dir, err := os.MkdirTemp(b.workRoot, "media-courier-*")
		if err != nil {
			d.cancel()
			return nil, fmt.Errorf("failed to create work dir: %w", err)
		}
		d.workDir = dir
	} else {
		dir := filepath.Join(b.workRoot, b.workDirName)
		if err := os.MkdirAll(dir, 0755); err != nil {
			d.cancel()
			return nil, fmt.Errorf("failed to create work dir: %w", err)
		}
		d.workDir = dir
	}
	return &d, nil
}

func (b *downloadBuilder) WithContext(ctx context.Context) DownloadBuilder {
	b.ctx = ctx
	return b
}

func (b *downloadBuilder) WithProgressCallback(f func(int, int)) DownloadBuilder {
	b.progressCallback = f
	return b
}

func (b *downloadBuilder) WithStem(stem string) DownloadBuilder {
	b.stem = stem
	return b
}

func (b *downloadBuilder) WithWorkDir(name string) DownloadBuilder {
	b.workDirName = name
	return b
}

func (b *downloadBuilder) WithWorkRoot(root string) DownloadBuilder {
	b.workRoot = root
	return b
}
