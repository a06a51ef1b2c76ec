package pipeline

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Spool stores uploaded document bytes on disk keyed by ingestion id,
// so forced reruns and the retry endpoint can re-read the original
// payload without a re-upload.
type Spool struct {
	dir string
}

// NewSpool creates the spool directory if needed.
func NewSpool(dir string) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "pipeline: create spool dir %s", dir)
	}
	return &Spool{dir: dir}, nil
}

func (s *Spool) path(id, ext string) string {
	return filepath.Join(s.dir, id+"."+ext)
}

// Write persists the payload for an ingestion and returns its path.
func (s *Spool) Write(id, ext string, data []byte) (string, error) {
	p := s.path(id, ext)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "pipeline: spool write %s", p)
	}
	return p, nil
}

// Read loads the payload for an ingestion.
func (s *Spool) Read(id, ext string) ([]byte, error) {
	data, err := os.ReadFile(s.path(id, ext))
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: spool read %s", id)
	}
	return data, nil
}
