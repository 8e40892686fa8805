package fileserver

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/model"
)

// DefaultMaxImageSize — лимит на одну картинку.
const DefaultMaxImageSize = 5 << 20

var ErrNotImage = errors.New("file is not a supported image")

type imageKind struct {
	ext  string
	mime string
}

// Service принимает и раздаёт картинки чата. Файлы лежат gzip-сжатыми под uuid-именем.
type Service struct {
	UploadDir     string
	MaxUploadSize int64
}

func New(uploadDir string, maxUploadSize int64) *Service {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxImageSize
	}
	return &Service{UploadDir: uploadDir, MaxUploadSize: maxUploadSize}
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("fileserver writeJSON: %v", err)
	}
}

func (s *Service) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Upload обрабатывает POST multipart/form-data с полем "file".
func (s *Service) Upload(w http.ResponseWriter, r *http.Request) {
	// запас на служебные части multipart
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadSize+64<<10)
	if err := r.ParseMultipartForm(s.MaxUploadSize); err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	if header.Size > s.MaxUploadSize {
		s.writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	res, err := s.Save(r.Context(), header.Filename, file)
	switch {
	case errors.Is(err, ErrNotImage):
		s.writeError(w, http.StatusUnsupportedMediaType, "only jpeg, png, gif and webp images are allowed")
	case r.Context().Err() != nil:
		return
	case err != nil:
		logger.Errorf("fileserver save %q: %v", header.Filename, err)
		s.writeError(w, http.StatusInternalServerError, "failed to save file")
	default:
		s.writeJSON(w, http.StatusOK, res)
	}
}

// Save проверяет сигнатуру и сохраняет картинку. Тип определяется по содержимому, не по имени.
func (s *Service) Save(ctx context.Context, originalName string, src io.Reader) (*model.UploadResult, error) {
	head := make([]byte, 512)
	n, _ := io.ReadAtLeast(src, head, len(head))
	head = head[:n]
	kind, ok := sniffImage(head)
	if !ok {
		return nil, ErrNotImage
	}

	if err := os.MkdirAll(s.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	newName := uuid.New().String() + kind.ext
	dstPath := filepath.Join(s.UploadDir, newName+".gz")
	dst, err := os.Create(dstPath)
	if err != nil {
		return nil, err
	}
	counter := &countingWriter{}
	gz := gzip.NewWriter(io.MultiWriter(dst, counter))
	written, err := writeAll(ctx, gz, head, src)
	if err == nil {
		err = gz.Close()
	} else {
		gz.Close()
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && written > s.MaxUploadSize {
		err = fmt.Errorf("image exceeds %d bytes", s.MaxUploadSize)
	}
	if err != nil {
		os.Remove(dstPath)
		return nil, err
	}
	logger.Debugf("fileserver saved %s: %d bytes, %d compressed", newName, written, counter.n)

	displayName := safeFilename(filepath.Base(strings.ReplaceAll(originalName, "+", " ")))
	if displayName == "" || displayName == "." {
		displayName = newName
	}
	return &model.UploadResult{
		URL:         "/api/files/" + newName,
		FileName:    displayName,
		FileSize:    written,
		ContentType: kind.mime,
	}, nil
}

func writeAll(ctx context.Context, dst io.Writer, head []byte, rest io.Reader) (int64, error) {
	if _, err := dst.Write(head); err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	n, err := copyWithContext(ctx, dst, rest)
	return int64(len(head)) + n, err
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

func sniffImage(head []byte) (imageKind, bool) {
	switch {
	case len(head) >= 3 && head[0] == 0xFF && head[1] == 0xD8 && head[2] == 0xFF:
		return imageKind{".jpg", "image/jpeg"}, true
	case len(head) >= 8 && bytes.Equal(head[:8], []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return imageKind{".png", "image/png"}, true
	case len(head) >= 6 && (bytes.Equal(head[:6], []byte("GIF87a")) || bytes.Equal(head[:6], []byte("GIF89a"))):
		return imageKind{".gif", "image/gif"}, true
	case len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WEBP")):
		return imageKind{".webp", "image/webp"}, true
	}
	return imageKind{}, false
}

func contentTypeByExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return ""
}

// Serve отдаёт картинку по имени, разжимая gzip на лету.
func (s *Service) Serve(w http.ResponseWriter, r *http.Request, filename string) {
	filename = filepath.Base(filename)
	ct := contentTypeByExt(filepath.Ext(filename))
	if ct == "" {
		s.writeError(w, http.StatusNotFound, "file not found")
		return
	}
	f, err := os.Open(filepath.Join(s.UploadDir, filename+".gz"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	defer gz.Close()
	w.Header().Set("Content-Type", ct)
	// имя uuid, содержимое не меняется
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, gz); err != nil {
		logger.Errorf("fileserver serve %s: %v", filename, err)
	}
}

// safeFilename убирает управляющие символы и разделители пути; UTF-8 сохраняется.
func safeFilename(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch r {
		case '\r', '\n', '"', '\\', '/', '\x00':
			continue
		}
		if unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		select {
		case <-ctx.Done():
			return total, fmt.Errorf("upload cancelled: %w", ctx.Err())
		default:
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return total, fmt.Errorf("write: %w", err)
			}
			total += int64(n)
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, fmt.Errorf("read: %w", readErr)
		}
	}
}
