package handler

import (
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tenantdesk/internal/fileserver"
	"github.com/tenantdesk/internal/logger"
)

// FileHandler принимает картинки чата: сам (fileserver) или проксирует на сервис files.
type FileHandler struct {
	fileSvc    *fileserver.Service
	fileClient *http.Client
	fileBase   string
	maxSize    int64
}

// NewFileHandler: пустой fileServiceURL — файлы хранятся локально в uploadDir.
func NewFileHandler(uploadDir string, maxSize int64, fileServiceURL string) *FileHandler {
	if maxSize <= 0 {
		maxSize = fileserver.DefaultMaxImageSize
	}
	h := &FileHandler{maxSize: maxSize}
	if fileServiceURL == "" {
		h.fileSvc = fileserver.New(uploadDir, maxSize)
	} else {
		h.fileClient = &http.Client{Timeout: 60 * time.Second}
		h.fileBase = strings.TrimSuffix(fileServiceURL, "/")
	}
	return h
}

func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.fileSvc != nil {
		h.fileSvc.Upload(w, r)
		return
	}
	proxyReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.fileBase+"/upload", nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	proxyReq.Header.Set("Content-Type", r.Header.Get("Content-Type"))
	proxyReq.Body = http.MaxBytesReader(w, r.Body, h.maxSize+64<<10)
	// Content-Length обязателен для корректного разбора multipart на той стороне
	if r.ContentLength > 0 {
		proxyReq.ContentLength = r.ContentLength
	}
	h.proxy(w, proxyReq)
}

func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	filename := filepath.Base(chi.URLParam(r, "filename"))
	if h.fileSvc != nil {
		h.fileSvc.Serve(w, r, filename)
		return
	}
	proxyReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, h.fileBase+"/files/"+url.PathEscape(filename), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.proxy(w, proxyReq)
}

func (h *FileHandler) proxy(w http.ResponseWriter, req *http.Request) {
	resp, err := h.fileClient.Do(req)
	if err != nil {
		logger.Errorf("file proxy %s %s: %v", req.Method, req.URL.Path, err)
		writeError(w, http.StatusBadGateway, "file service unavailable")
		return
	}
	defer resp.Body.Close()
	for _, k := range []string{"Content-Length", "Content-Type", "Cache-Control"} {
		if v := resp.Header.Get(k); v != "" {
			w.Header().Set(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}
