package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/makerhub/internal/errs"
	"github.com/and161185/makerhub/internal/model"
)

// URLPrefix is where stored files are served from.
const URLPrefix = "/uploads/"

type uploadCategory struct {
	dir  string
	exts []string
}

var (
	imageExts = []string{".gif", ".jpeg", ".jpg", ".png", ".webp"}
	fileExts  = []string{".doc", ".docx", ".pdf", ".txt", ".zip"}

	uploadCategories = map[string]uploadCategory{
		"image":  {dir: "images", exts: imageExts},
		"avatar": {dir: "avatars", exts: imageExts},
		"file":   {dir: "files", exts: fileExts},
	}
)

// UploadService stores user files on local disk.
type UploadService struct {
	dir     string
	maxSize int64
}

// NewUploadService stores files under dir, rejecting files above maxSize bytes.
func NewUploadService(dir string, maxSize int64) *UploadService {
	return &UploadService{dir: dir, maxSize: maxSize}
}

// Dir is the storage root.
func (s *UploadService) Dir() string { return s.dir }

// MaxSize is the per-file limit in bytes.
func (s *UploadService) MaxSize() int64 { return s.maxSize }

// Save writes r under a random name in the category's directory.
func (s *UploadService) Save(_ context.Context, caller *Principal, category, name string, r io.Reader) (*model.Upload, error) {
	if caller == nil {
		return nil, errs.ErrUnauthorized
	}
	cat, ok := uploadCategories[category]
	if !ok {
		return nil, fmt.Errorf("upload category %q: %w", category, errs.ErrNotFound)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(cat.exts, ext) {
		return nil, fmt.Errorf("%w: file type not allowed, allowed: %s", errs.ErrValidation, strings.Join(cat.exts, ", "))
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	filename := id.String() + ext
	if category == "avatar" {
		filename = "avatar_" + caller.UserID.String() + "_" + filename
	}

	dir := filepath.Join(s.dir, cat.dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	dst := filepath.Join(dir, filename)
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}

	// one byte past the limit tells an oversized file from an exact fit
	n, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.maxSize {
		err = fmt.Errorf("%w: maximum size is %d bytes", errs.ErrTooLarge, s.maxSize)
	}
	if err != nil {
		_ = os.Remove(dst)
		return nil, err
	}

	return &model.Upload{
		Filename:     filename,
		URL:          URLPrefix + path.Join(cat.dir, filename),
		Category:     category,
		OriginalName: filepath.Base(name),
		Size:         n,
	}, nil
}
