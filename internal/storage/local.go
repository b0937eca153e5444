package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxImageSize is the upload ceiling in bytes.
const MaxImageSize = 5_000_000

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// StoredImage is the durable copy of an uploaded image. Path points at the
// file on disk; Ref is the opaque reference persisted with the verification
// record and handed back to clients.
type StoredImage struct {
	Path     string
	Ref      string
	Name     string
	MimeType string
	Size     int64
}

// LocalStore saves uploaded images to the local filesystem.
type LocalStore struct {
	baseDir string // absolute or relative path to the uploads dir
	baseURL string // URL prefix under which files are served
}

func NewLocalStore(baseDir, baseURL string) *LocalStore {
	return &LocalStore{baseDir: baseDir, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Save validates the attachment and writes it to disk under a per-request
// unique name. Validation is fail-fast: extension, declared content type and
// sniffed content type must all be on the allow-list before the size check,
// and nothing touches disk until all checks pass. The file is not removed if
// a later pipeline stage fails.
func (s *LocalStore) Save(fileHeader *multipart.FileHeader) (*StoredImage, error) {
	if fileHeader == nil || fileHeader.Size == 0 {
		return nil, ErrNoImage
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedExtensions[ext] {
		return nil, ErrUnsupportedType
	}

	declared := strings.ToLower(strings.TrimSpace(strings.Split(fileHeader.Header.Get("Content-Type"), ";")[0]))
	if !allowedMimeTypes[declared] {
		return nil, ErrUnsupportedType
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	defer file.Close()

	// Sniff the real content type from the first 512 bytes; the declared
	// header and the extension are both spoofable on their own.
	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	mimeType := strings.Split(http.DetectContentType(buf[:n]), ";")[0]
	if !allowedMimeTypes[mimeType] {
		return nil, ErrUnsupportedType
	}

	if fileHeader.Size > MaxImageSize {
		return nil, ErrImageTooLarge
	}

	if seeker, ok := file.(io.Seeker); ok {
		_, _ = seeker.Seek(0, io.SeekStart)
	}

	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	name := fmt.Sprintf("%d-%s-%s%s",
		time.Now().UnixMilli(), uuid.NewString()[:8], sanitizeName(fileHeader.Filename), ext)

	absPath := filepath.Join(s.baseDir, name)
	dst, err := os.Create(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	size, err := io.Copy(dst, file)
	if err != nil {
		_ = os.Remove(absPath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &StoredImage{
		Path:     absPath,
		Ref:      s.baseURL + "/" + name,
		Name:     name,
		MimeType: mimeType,
		Size:     size,
	}, nil
}

// Open returns a reader over the stored bytes for the analysis stage.
func (s *LocalStore) Open(img *StoredImage) (io.ReadCloser, error) {
	return os.Open(img.Path)
}

func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '_'
	}, name)
	if len(name) > 40 {
		name = name[:40]
	}
	if name == "" {
		return "image"
	}
	return name
}
