package frontend

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jo-hoe/imagesieve/internal/core"
	"github.com/labstack/echo/v4"
)

type stubLabeler struct{ labels []string }

func (s *stubLabeler) Labels(context.Context, image.Image) ([]string, error) { return s.labels, nil }
func (s *stubLabeler) Close() error                                            { return nil }

func newTestFrontend(t *testing.T) *echo.Echo {
	t.Helper()
	config := core.DefaultConfig()
	config.Database.ConnectionString = ":memory:"
	config.Commands = core.DefaultCommands()
	coreService, err := core.NewCoreService(config, &stubLabeler{labels: []string{"person", "bicycle"}}, core.NewLocalLocker(), nil)
	if err != nil {
		t.Fatalf("NewCoreService error: %v", err)
	}
	t.Cleanup(func() { _ = coreService.Close() })

	e := echo.New()
	NewFrontendService(coreService).SetRoutes(e)
	return e
}

func uploadForm(t *testing.T, payload []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "upload.png")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	_, _ = part.Write(payload)
	_ = writer.Close()
	req := httptest.NewRequest(http.MethodPost, "/htmx/uploadImage", &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 24, 24))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestFrontend_RootRedirectsToIndex(t *testing.T) {
	e := newTestFrontend(t)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusMovedPermanently || rec.Header().Get("Location") != "/"+MainPageName {
		t.Fatalf("expected redirect to index, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+MainPageName, nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `hx-post="/htmx/uploadImage"`) {
		t.Fatalf("unexpected index page: %d", rec.Code)
	}
}

func TestFrontend_UploadRendersScoreCard(t *testing.T) {
	e := newTestFrontend(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadForm(t, pngBytes(t)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{"First image stored.", "Final score", "100%", "person, bicycle", `hx-swap-oob="true"`} {
		if !strings.Contains(body, want) {
			t.Errorf("score card is missing %q:\n%s", want, body)
		}
	}
}

func TestFrontend_UploadInvalidImage(t *testing.T) {
	e := newTestFrontend(t)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadForm(t, []byte("nope")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not a supported image") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestFrontend_ListThumbnailDelete(t *testing.T) {
	e := newTestFrontend(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/htmx/images", nil))
	if !strings.Contains(rec.Body.String(), "No images stored yet.") {
		t.Fatalf("expected empty list, got %s", rec.Body.String())
	}

	e.ServeHTTP(httptest.NewRecorder(), uploadForm(t, pngBytes(t)))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/htmx/images", nil))
	body := rec.Body.String()
	start := strings.Index(body, `data-id="`)
	if start < 0 {
		t.Fatalf("expected an image entry, got %s", body)
	}
	id := body[start+len(`data-id="`):]
	id = id[:strings.Index(id, `"`)]

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/htmx/image/thumb/"+id, nil))
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentType) != mimeJPEG {
		t.Fatalf("expected jpeg thumbnail, got %d %q", rec.Code, rec.Header().Get(echo.HeaderContentType))
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/htmx/image/"+id, nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "No images stored yet.") {
		t.Fatalf("expected empty list after delete, got %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/htmx/image/thumb/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for deleted thumbnail, got %d", rec.Code)
	}
}

func TestFrontend_Icon(t *testing.T) {
	e := newTestFrontend(t)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/icon.svg", nil))
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentType) != "image/svg+xml" {
		t.Fatalf("unexpected icon response %d %q", rec.Code, rec.Header().Get(echo.HeaderContentType))
	}
}
