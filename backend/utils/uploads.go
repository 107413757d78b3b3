package utils

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ImageTypes are the upload content types accepted as images.
var ImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Storage keeps uploaded media on the local filesystem under Root and serves it under URL.
type Storage struct {
	Root string
	URL  string
}

func NewStorage(root, url string) *Storage {
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	return &Storage{Root: root, URL: url}
}

// ImageExt sniffs an upload and returns the extension of its detected image type, without the dot.
// The client filename is ignored.
func ImageExt(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to detect upload type: %w", err)
	}
	if !mimetype.EqualsAny(mtype.String(), ImageTypes...) {
		return "", fmt.Errorf("unsupported upload type %s", mtype.String())
	}
	return strings.TrimPrefix(mtype.Extension(), "."), nil
}

func TopicUploadPath(id uint, ext string) string {
	return fmt.Sprintf("t_images/%d.%s", id, ext)
}

func CommentUploadPath(id uint, ext string) string {
	return fmt.Sprintf("c_images/%d.%s", id, ext)
}

func AvatarUploadPath(userID uint, ext string) string {
	return fmt.Sprintf("avatars/%d/%d.%s", userID, userID, ext)
}

// CropPath maps "dir/name.ext" to "dir/name_crop.ext".
func CropPath(rel string) string {
	ext := path.Ext(rel)
	return strings.TrimSuffix(rel, ext) + "_crop" + ext
}

// Abs resolves a stored relative path to a filesystem path.
func (s *Storage) Abs(rel string) string {
	return filepath.Join(s.Root, filepath.FromSlash(rel))
}

// FileURL resolves a stored relative path to its public URL.
func (s *Storage) FileURL(rel string) string {
	if rel == "" {
		return ""
	}
	return s.URL + strings.TrimPrefix(rel, "/")
}

// Save writes the uploaded file to rel, replacing any previous file there.
func (s *Storage) Save(fh *multipart.FileHeader, rel string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	dst := s.Abs(rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", rel, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return out.Close()
}

// Remove deletes a stored file and its crop. Missing files are not an error.
func (s *Storage) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	for _, p := range []string{rel, CropPath(rel)} {
		if err := os.Remove(s.Abs(p)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}
