package asset

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/yakoovad/teamhub/pkg/logger"
	"go.uber.org/zap"
)

var ErrUnsupportedType = errors.New("unsupported image type")

var allowed = map[string]bool{
	"image/png":     true,
	"image/jpeg":    true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
}

// Storer writes base64 images under dir and hands back the file name.
type Storer struct {
	dir string
}

func NewStorer(dir string) *Storer {
	return &Storer{dir: dir}
}

// Store is best effort: empty input and every failure yield "".
func (s *Storer) Store(ctx context.Context, data string) string {
	if data == "" {
		return ""
	}

	name, err := s.store(data)
	if err != nil {
		logger.FromContext(ctx).Warn("failed to store asset", zap.Error(err))
		return ""
	}

	return name
}

func (s *Storer) store(data string) (string, error) {
	if i := strings.Index(data, ";base64,"); strings.HasPrefix(data, "data:") && i >= 0 {
		data = data[i+len(";base64,"):]
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", errors.Wrap(err, "decode asset")
	}

	mt := mimetype.Detect(raw)
	if !allowed[mt.String()] {
		return "", errors.Wrap(ErrUnsupportedType, mt.String())
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create upload dir")
	}

	name := uuid.NewString() + mt.Extension()
	if err := os.WriteFile(filepath.Join(s.dir, name), raw, 0o644); err != nil {
		return "", errors.Wrap(err, "write asset")
	}

	return name, nil
}
