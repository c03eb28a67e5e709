// Package media stores uploaded product images on disk.
package media

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"farmmarket/pkg/config"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBadExtension is returned for files outside the allow-list.
var ErrBadExtension = errors.New("unsupported image type")

// DefaultImage is the placeholder reference used when no upload is provided.
const DefaultImage = "default.jpg"

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// Allowed reports whether the filename carries an allow-listed extension.
func Allowed(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Store writes images under a base directory and keeps a thumbnail next to
// each original under thumbs/.
type Store struct {
	dir        string
	thumbWidth int
	log        *zap.Logger
}

func NewStore(cfg *config.MediaConfig, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(cfg.Dir, "thumbs"), 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: cfg.Dir, thumbWidth: cfg.ThumbWidth, log: log}, nil
}

// Dir returns the base directory images are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the uploaded image and returns the storage-relative filename
// used as the product's image reference. The stored name is regenerated from
// a timestamp and a UUID so uploads can never collide or traverse paths. A
// file that passes the extension allow-list but does not decode still gets
// stored; it just has no thumbnail.
func (s *Store) Save(r io.Reader, originalName string) (string, error) {
	if !Allowed(originalName) {
		return "", ErrBadExtension
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	name := time.Now().Format("20060102150405") + "_" + uuid.New().String() + ext

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", err
	}

	if img, err := imaging.Decode(bytes.NewReader(data)); err == nil {
		thumb := imaging.Resize(img, s.thumbWidth, 0, imaging.Lanczos)
		if err := imaging.Save(thumb, filepath.Join(s.dir, "thumbs", name)); err != nil {
			s.log.Warn("Failed to write thumbnail", zap.String("image", name), zap.Error(err))
		}
	} else {
		s.log.Warn("Uploaded image did not decode, stored without thumbnail",
			zap.String("image", name), zap.Error(err))
	}

	return name, nil
}
