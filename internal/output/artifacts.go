package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// BlobStore accepts binary artifacts by key and content type.
type BlobStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
}

var extByContentType = map[string]string{
	"text/html":  "html",
	"image/png":  "png",
	"video/mp4":  "mp4",
	"application/vnd.apple.mpegurl": "m3u8",
}

// FSStore writes blobs under a single directory. Keys are expected to be
// collision-resistant (timestamp-based); the store does not overwrite-check.
type FSStore struct {
	dir string
	log zerolog.Logger
}

func NewFSStore(dir string, log zerolog.Logger) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts dir: %w", err)
	}
	return &FSStore{dir: dir, log: log}, nil
}

func (s *FSStore) Save(_ context.Context, key string, data []byte, contentType string) error {
	ext, ok := extByContentType[contentType]
	if !ok {
		ext = "bin"
	}
	path := filepath.Join(s.dir, key+"."+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	s.log.Debug().Str("path", path).Int("bytes", len(data)).Msg("artifact saved")
	return nil
}

// SnapshotKey builds a collision-resistant key for a diagnostic artifact.
func SnapshotKey(label string) string {
	return fmt.Sprintf("%s-%d", label, time.Now().UnixMilli())
}
