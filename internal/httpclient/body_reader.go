package httpclient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/torosent/sron/internal/config"
)

// maxBufferedBody is the largest body file kept in memory. Bigger files are reopened
// for every request.
const maxBufferedBody = 4 << 20

// BodySource produces a fresh reader over the request payload for every request.
type BodySource interface {
	NewReader() (io.ReadCloser, error)
	ContentLength() (int64, bool)
}

// NewBodySource picks the payload for cfg: the inline body, the body file, or none.
// Body files are checked and, when small enough, read once here so requests never
// touch the disk on the dispatch path.
func NewBodySource(cfg *config.Config) (BodySource, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	bodyFile := strings.TrimSpace(cfg.BodyFile)
	switch {
	case cfg.Body != "" && bodyFile != "":
		return nil, errors.New("body and body file cannot both be provided")
	case cfg.Body != "":
		return bytesBody([]byte(cfg.Body)), nil
	case bodyFile == "":
		return noBody{}, nil
	}

	info, err := os.Stat(bodyFile)
	if err != nil {
		return nil, fmt.Errorf("body file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("body file %q is a directory", bodyFile)
	}
	if info.Size() > maxBufferedBody {
		return &fileBody{path: bodyFile, size: info.Size()}, nil
	}

	data, err := os.ReadFile(bodyFile)
	if err != nil {
		return nil, fmt.Errorf("body file: %w", err)
	}
	return bytesBody(data), nil
}

// bytesBody is a payload held in memory and shared by every request.
type bytesBody []byte

func (b bytesBody) NewReader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (b bytesBody) ContentLength() (int64, bool) {
	return int64(len(b)), true
}

// fileBody streams a large payload from disk.
type fileBody struct {
	path string
	size int64
}

func (f *fileBody) NewReader() (io.ReadCloser, error) {
	return os.Open(f.path)
}

func (f *fileBody) ContentLength() (int64, bool) {
	return f.size, true
}

type noBody struct{}

func (noBody) NewReader() (io.ReadCloser, error) {
	return http.NoBody, nil
}

func (noBody) ContentLength() (int64, bool) {
	return 0, true
}
