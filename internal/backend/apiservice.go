package backend

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jo-hoe/imagesieve/internal/core"
	"github.com/jo-hoe/imagesieve/internal/detection"
	"github.com/jo-hoe/imagesieve/internal/metrics"
	"github.com/labstack/echo/v4"
)

const defaultListLimit = 100

type APIService struct {
	coreService *core.CoreService
	metrics     *metrics.Manager
}

// AdmissionResponse is the JSON body returned for an upload.
type AdmissionResponse struct {
	HashScore     int      `json:"hash_score"`
	ColorScore    int      `json:"color_score"`
	ObjectScore   int      `json:"object_score"`
	CombinedScore int      `json:"combined_score"`
	ObjectLabels  []string `json:"object_labels"`
	Admitted      bool     `json:"admitted"`
	FirstImage    bool     `json:"first_image"`
	MatchedID     string   `json:"matched_id,omitempty"`
	ImageID       string   `json:"image_id,omitempty"`
}

type ImageSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type listImagesRequest struct {
	Limit int `query:"limit" validate:"min=0,max=1000"`
}

type imageIDRequest struct {
	ID string `param:"id" validate:"required,uuid4"`
}

// NewAPIService creates the JSON API. m may be nil, in which case /metrics is not served.
func NewAPIService(coreService *core.CoreService, m *metrics.Manager) *APIService {
	return &APIService{
		coreService: coreService,
		metrics:     m,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	// Set probe route
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "API Service is running")
	})

	e.POST("/api/images", s.uploadImageHandler)
	e.GET("/api/images", s.listImagesHandler)
	e.GET("/api/images/:id", s.getImageHandler)
	e.DELETE("/api/images/:id", s.deleteImageHandler)

	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

// NewAdmissionResponse flattens an admission result into the API response.
func NewAdmissionResponse(result *core.AdmissionResult) AdmissionResponse {
	return AdmissionResponse{
		HashScore:     result.Match.HashScore,
		ColorScore:    result.Match.ColorScore,
		ObjectScore:   result.Match.ObjectScore,
		CombinedScore: result.Match.CombinedScore,
		ObjectLabels:  result.Labels,
		Admitted:      result.Admitted,
		FirstImage:    result.FirstImage,
		MatchedID:     result.MatchedID,
		ImageID:       result.ImageID,
	}
}

// StatusForError maps admission errors to HTTP status codes.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, detection.ErrInferenceTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage exposes the error text only for client errors.
func errorMessage(status int, err error) string {
	switch status {
	case http.StatusBadRequest:
		return err.Error()
	case http.StatusServiceUnavailable:
		return "object detection timed out, try again later"
	default:
		return "failed to process image"
	}
}

func (s *APIService) uploadImageHandler(ctx echo.Context) error {
	file, err := ctx.FormFile("image")
	if err != nil {
		slog.Warn("uploadImageHandler: missing image field",
			"status", http.StatusBadRequest, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'image' is required")
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("uploadImageHandler: failed to open uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("uploadImageHandler: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	raw, err := io.ReadAll(src)
	if err != nil {
		slog.Error("uploadImageHandler: failed to read uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read uploaded file")
	}

	result, err := s.coreService.AddImage(ctx.Request().Context(), raw)
	if err != nil {
		status := StatusForError(err)
		slog.Error("uploadImageHandler: failed to admit image",
			"status", status, "error", err, "filename", file.Filename)
		return echo.NewHTTPError(status, errorMessage(status, err))
	}

	return ctx.JSON(http.StatusOK, NewAdmissionResponse(result))
}

func (s *APIService) listImagesHandler(ctx echo.Context) error {
	var req listImagesRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultListLimit
	}

	images, err := s.coreService.ListImages(limit)
	if err != nil {
		slog.Error("listImagesHandler: failed to list images",
			"status", http.StatusInternalServerError, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list images")
	}

	summaries := make([]ImageSummary, 0, len(images))
	for _, image := range images {
		summaries = append(summaries, ImageSummary{ID: image.ID, CreatedAt: image.CreatedAt})
	}
	return ctx.JSON(http.StatusOK, summaries)
}

func (s *APIService) getImageHandler(ctx echo.Context) error {
	var req imageIDRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	image, err := s.coreService.GetImageByID(req.ID)
	if err != nil {
		slog.Error("getImageHandler: failed to load image",
			"status", http.StatusInternalServerError, "image_id", req.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load image")
	}
	if image == nil || len(image.Image) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "image not found")
	}

	return ctx.Blob(http.StatusOK, http.DetectContentType(image.Image), image.Image)
}

func (s *APIService) deleteImageHandler(ctx echo.Context) error {
	var req imageIDRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	if err := s.coreService.DeleteImage(req.ID); err != nil {
		slog.Error("deleteImageHandler: failed to delete image",
			"status", http.StatusInternalServerError, "image_id", req.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete image")
	}
	return ctx.NoContent(http.StatusNoContent)
}
