// Package storage owns the uploads and results directories and the unique
// names files receive in them.
package storage

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// UploadsURLPrefix is where saved uploads are served from.
	UploadsURLPrefix = "/static/uploads"
	// ResultsURLPrefix is where colorized outputs are served from.
	ResultsURLPrefix = "/static/results"
	// OutputExt is the extension of every colorized output.
	OutputExt = ".jpg"
)

// Upload describes an input file persisted under a generated name.
type Upload struct {
	Name string
	Path string
	Size int64
	SHA1 string
}

// URL returns the relative URL the upload is served under.
func (u *Upload) URL() string {
	return path.Join(UploadsURLPrefix, u.Name)
}

// Result describes where a colorized output will be written.
type Result struct {
	Name string
	Path string
}

// URL returns the relative URL the result is served under.
func (r Result) URL() string {
	return path.Join(ResultsURLPrefix, r.Name)
}

// Store writes uploads and allocates result paths.
type Store struct {
	uploadDir  string
	resultsDir string
}

// NewStore creates both directories when they are missing.
func NewStore(uploadDir, resultsDir string) (*Store, error) {
	for _, dir := range []string{uploadDir, resultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Store{uploadDir: uploadDir, resultsDir: resultsDir}, nil
}

// UploadDir returns the directory uploads are written to.
func (s *Store) UploadDir() string { return s.uploadDir }

// ResultsDir returns the directory results are written to.
func (s *Store) ResultsDir() string { return s.resultsDir }

// SaveUpload copies src byte for byte into a fresh file named after a new
// UUID and the lower-cased extension of originalName.
func (s *Store) SaveUpload(src io.Reader, originalName string) (*Upload, error) {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(originalName))
	dst := filepath.Join(s.uploadDir, name)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}

	hash := sha1.New()
	size, err := io.Copy(io.MultiWriter(f, hash), src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", dst, err)
	}

	return &Upload{
		Name: name,
		Path: dst,
		Size: size,
		SHA1: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// NewResult allocates a unique output path. Nothing is written.
func (s *Store) NewResult() Result {
	name := uuid.NewString() + OutputExt
	return Result{Name: name, Path: filepath.Join(s.resultsDir, name)}
}
