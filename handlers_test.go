package main

import (
	"bytes"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg = loadConfig()
	r := gin.New()
	setupRoutes(r)
	return r
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, w.FormDataContentType()
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(8, 8, color.NRGBA{A: 255}), imaging.PNG); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestUploadRejectsMissingFile(t *testing.T) {
	r := newTestRouter(t)
	req, _ := http.NewRequest(http.MethodPost, "/receipts", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	r := newTestRouter(t)
	body, ct := multipartUpload(t, "file", "receipt.txt", []byte("TOTAL 12.34 but plain text"))
	req, _ := http.NewRequest(http.MethodPost, "/receipts", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "unsupported") {
		t.Fatalf("expected unsupported-type error, got %s", rec.Body.String())
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	r := newTestRouter(t)
	cfg.MaxUploadBytes = 16
	body, ct := multipartUpload(t, "file", "receipt.png", tinyPNG(t))
	req, _ := http.NewRequest(http.MethodPost, "/receipts", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCommitRequiresTarget(t *testing.T) {
	r := newTestRouter(t)
	req, _ := http.NewRequest(http.MethodPost, "/receipts/sometoken/commit", strings.NewReader(`{"items":[]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing category/location, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMIMEAllowlist(t *testing.T) {
	cfg = loadConfig()
	if !mimeAllowed(tinyPNG(t)) {
		t.Fatal("png must be allowed by default")
	}
	if mimeAllowed([]byte("%PDF-1.4 fake document")) {
		t.Fatal("pdf must not pass the image allowlist")
	}
	// No webp decoder is registered, so webp must not pass validation only
	// to fail decoding later.
	webp := []byte("RIFF\x24\x00\x00\x00WEBPVP8 \x00\x00\x00\x00")
	if mimeAllowed(webp) {
		t.Fatal("webp is not decodable and must not pass the allowlist")
	}
}
