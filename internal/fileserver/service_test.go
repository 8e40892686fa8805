package fileserver

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantdesk/internal/model"
)

var pngData = append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0x42}, 2048)...)

func uploadRequest(t *testing.T, name string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadAndServe(t *testing.T) {
	svc := New(t.TempDir(), 0)

	rec := httptest.NewRecorder()
	svc.Upload(rec, uploadRequest(t, "кухня.png", pngData))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res model.UploadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, strings.HasPrefix(res.URL, "/api/files/"))
	assert.True(t, strings.HasSuffix(res.URL, ".png"))
	assert.Equal(t, "кухня.png", res.FileName)
	assert.Equal(t, int64(len(pngData)), res.FileSize)
	assert.Equal(t, "image/png", res.ContentType)

	rec = httptest.NewRecorder()
	svc.Serve(rec, httptest.NewRequest(http.MethodGet, res.URL, nil), path.Base(res.URL))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngData, rec.Body.Bytes())
}

func TestUpload_RejectsNonImage(t *testing.T) {
	svc := New(t.TempDir(), 0)
	rec := httptest.NewRecorder()
	// расширение картинки не помогает: тип по содержимому
	svc.Upload(rec, uploadRequest(t, "evil.png", []byte("#!/bin/sh\nrm -rf /\n")))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestUpload_TooLarge(t *testing.T) {
	svc := New(t.TempDir(), 1024)
	rec := httptest.NewRecorder()
	svc.Upload(rec, uploadRequest(t, "big.png", pngData))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServe_NotFound(t *testing.T) {
	svc := New(t.TempDir(), 0)
	for _, name := range []string{"missing.png", "../../etc/passwd", "script.js"} {
		rec := httptest.NewRecorder()
		svc.Serve(rec, httptest.NewRequest(http.MethodGet, "/", nil), name)
		assert.Equal(t, http.StatusNotFound, rec.Code, name)
	}
}

func TestSniffImage(t *testing.T) {
	cases := map[string]struct {
		head []byte
		mime string
	}{
		"jpeg": {[]byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg"},
		"gif":  {[]byte("GIF89a...."), "image/gif"},
		"webp": {[]byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "image/webp"},
	}
	for name, tc := range cases {
		kind, ok := sniffImage(tc.head)
		assert.True(t, ok, name)
		assert.Equal(t, tc.mime, kind.mime, name)
	}
	_, ok := sniffImage([]byte("%PDF-1.7"))
	assert.False(t, ok)
}
