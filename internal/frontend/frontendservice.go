package frontend

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jo-hoe/imagesieve/internal/backend"
	"github.com/jo-hoe/imagesieve/internal/core"
	"github.com/labstack/echo/v4"
)

const (
	MainPageName  = "index.html"
	scoreCardName = "scorecard.html"
	mimeJPEG      = "image/jpeg"
	listLimit     = 50
)

type FrontendService struct {
	coreService *core.CoreService
	templates   *template.Template
}

func NewFrontendService(coreService *core.CoreService) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		templates:   template.Must(template.New("").ParseFS(templateFS, viewsPattern)),
	}
}

// rootRedirectHandler redirects root path to index.html
func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	return ctx.Redirect(http.StatusMovedPermanently, "/"+MainPageName)
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = &Template{templates: service.templates}

	e.GET("/", service.rootRedirectHandler) // Redirect root to index.html
	e.GET("/"+MainPageName, service.indexHandler)
	e.POST("/htmx/uploadImage", service.htmxUploadImageHandler)

	// Routes for listing, thumbnails and deleting images
	e.GET("/htmx/images", service.htmxListImagesHandler)
	e.GET("/htmx/image/thumb/:id", service.htmxGetThumbnailByIDHandler)
	e.DELETE("/htmx/image/:id", service.htmxDeleteImageHandler)

	// Favicon (SVG) route
	e.GET("/icon.svg", service.iconHandler)
}

func (service *FrontendService) indexHandler(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, MainPageName, nil)
}

func (service *FrontendService) htmxUploadImageHandler(ctx echo.Context) error {
	file, err := ctx.FormFile("image")
	if err != nil {
		slog.Error("htmxUploadImageHandler: failed to get uploaded file",
			"status", http.StatusBadRequest, "error", err)
		return ctx.HTML(http.StatusBadRequest, uploadMessage("Please choose an image to upload."))
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("htmxUploadImageHandler: failed to open uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.HTML(http.StatusInternalServerError, uploadMessage("Failed to open uploaded file."))
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("htmxUploadImageHandler: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	raw, err := io.ReadAll(src)
	if err != nil {
		slog.Error("htmxUploadImageHandler: failed to read uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.HTML(http.StatusInternalServerError, uploadMessage("Failed to read uploaded file."))
	}

	result, err := service.coreService.AddImage(ctx.Request().Context(), raw)
	if err != nil {
		status := backend.StatusForError(err)
		slog.Error("htmxUploadImageHandler: failed to process uploaded image",
			"status", status, "error", err, "filename", file.Filename)
		if status == http.StatusBadRequest {
			return ctx.HTML(status, uploadMessage("The file is not a supported image."))
		}
		return ctx.HTML(status, uploadMessage("Failed to process uploaded image."))
	}

	var card bytes.Buffer
	if err := service.templates.ExecuteTemplate(&card, scoreCardName, result); err != nil {
		slog.Error("htmxUploadImageHandler: failed to render score card",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.HTML(http.StatusInternalServerError, uploadMessage("Failed to render result."))
	}

	if !result.Admitted {
		return ctx.HTML(http.StatusOK, card.String())
	}

	// Refresh the image list out of band when the corpus changed
	imageListHTML, listErr := service.buildImageListHTML(service.timestampNanoStr())
	if listErr != nil {
		slog.Error("htmxUploadImageHandler: failed to list images for OOB update",
			"status", http.StatusInternalServerError, "error", listErr)
		return ctx.HTML(http.StatusOK, card.String())
	}
	imageListOOB := fmt.Sprintf(`<div id="image-list" hx-swap-oob="true">%s</div>`, imageListHTML)
	return ctx.HTML(http.StatusOK, card.String()+imageListOOB)
}

func uploadMessage(message string) string {
	return fmt.Sprintf(`<div id="upload-result"><p>%s</p></div>`, template.HTMLEscapeString(message))
}

func (service *FrontendService) htmxListImagesHandler(ctx echo.Context) error {
	listHTML, err := service.buildImageListHTML(service.timestampNanoStr())
	if err != nil {
		slog.Error("htmxListImagesHandler: failed to list images",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to list images")
	}

	// Prevent caching so the latest images are always shown
	service.setNoCache(ctx)

	return ctx.HTML(http.StatusOK, listHTML)
}

func (service *FrontendService) htmxGetThumbnailByIDHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		slog.Warn("htmxGetThumbnailByIDHandler: missing image id",
			"status", http.StatusBadRequest,
			"route", "/htmx/image/thumb/:id")
		return ctx.String(http.StatusBadRequest, "Missing image ID")
	}

	thumbnail, err := service.coreService.GetThumbnail(id)
	if err != nil || len(thumbnail) == 0 {
		slog.Warn("htmxGetThumbnailByIDHandler: thumbnail not available",
			"status", http.StatusNotFound, "image_id", id, "error", err)
		return ctx.String(http.StatusNotFound, "Thumbnail not available")
	}

	service.setNoCache(ctx)

	return ctx.Blob(http.StatusOK, mimeJPEG, thumbnail)
}

func (service *FrontendService) htmxDeleteImageHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		slog.Warn("htmxDeleteImageHandler: missing image id",
			"status", http.StatusBadRequest,
			"route", "/htmx/image/:id")
		return ctx.String(http.StatusBadRequest, "Missing image ID")
	}

	if err := service.coreService.DeleteImage(id); err != nil {
		slog.Error("htmxDeleteImageHandler: failed to delete image",
			"status", http.StatusInternalServerError, "image_id", id, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to delete image")
	}

	listHTML, err := service.buildImageListHTML(service.timestampNanoStr())
	if err != nil {
		slog.Error("htmxDeleteImageHandler: failed to list images after delete",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to list images")
	}

	service.setNoCache(ctx)

	// Return list HTML (to swap into #image-list)
	return ctx.HTML(http.StatusOK, listHTML)
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

func (service *FrontendService) timestampNanoStr() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

func (service *FrontendService) buildImageListHTML(ts string) (string, error) {
	images, err := service.coreService.ListImages(listLimit)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if len(images) == 0 {
		b.WriteString(`<p>No images stored yet.</p>`)
		return b.String(), nil
	}

	b.WriteString(`<div class="grid" id="image-grid">`)
	for _, image := range images {
		id := template.HTMLEscapeString(image.ID)
		b.WriteString(fmt.Sprintf(`<article data-id="%s">
	<img src="/htmx/image/thumb/%s?ts=%s" alt="Thumbnail %s" style="max-width:100%%;height:auto">
	<footer style="display:flex;gap:0.5rem;align-items:center;justify-content:space-between">
		<small>%s</small>
		<button hx-delete="/htmx/image/%s" hx-target="#image-list" hx-swap="innerHTML" hx-confirm="Delete this image?" class="secondary">Delete</button>
	</footer>
</article>`, id, id, ts, id, image.CreatedAt.Format("2006-01-02 15:04"), id))
	}
	b.WriteString(`</div>`)
	return b.String(), nil
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}
