package http

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cigarlens/backend/internal/domain"
)

// maxImageBytes bounds uploaded and base64-decoded photos
const maxImageBytes = 10 << 20

// Recognizer identifies cigars from photos or names
type Recognizer interface {
	RecognizeFromImage(ctx context.Context, image []byte, mimeType, hint string) (*domain.RecognitionResult, error)
	RecognizeFromText(ctx context.Context, name, brand string) (*domain.RecognitionResult, error)
}

// Reconciler persists recognition results into the catalog
type Reconciler interface {
	Reconcile(ctx context.Context, result *domain.RecognitionResult, imageURL string) (*domain.ReconcileOutcome, error)
}

// CatalogLookup reads verified catalog details
type CatalogLookup interface {
	GetDetails(ctx context.Context, brand, name string) (*domain.CatalogEntry, error)
}

// StatsReader reads recognition statistics
type StatsReader interface {
	GetStats(ctx context.Context, brand, name string) (*domain.RecognitionStats, error)
}

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the usecase dependencies of the HTTP handlers. Any of them may be
// nil; the matching endpoints then answer 503.
type Services struct {
	Recognizer Recognizer
	Reconciler Reconciler
	Catalog    CatalogLookup
	Stats      StatsReader
	Cache      domain.ResultCache
	Settings   domain.Settings
	Store      Pinger
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	services Services
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(services Services, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{services: services, logger: logger.Named("http")}
}

// RecognizeImageRequest is the JSON form of an image recognition request
type RecognizeImageRequest struct {
	ImageBase64 string `json:"imageBase64" binding:"required"`
	MIMEType    string `json:"mimeType"`
	Hint        string `json:"hint"`
}

// RecognizeTextRequest is a text recognition request
type RecognizeTextRequest struct {
	Name  string `json:"name" binding:"required"`
	Brand string `json:"brand"`
}

// RecognizeImageResponse carries the result and, when persistence is on, the catalog outcome
type RecognizeImageResponse struct {
	Result         *domain.RecognitionResult `json:"result"`
	Reconciliation *domain.ReconcileOutcome  `json:"reconciliation,omitempty"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string   `json:"error"`
	Hints []string `json:"hints,omitempty"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if h.services.Store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.services.Store.Ping(ctx); err != nil {
			h.logger.Warn("catalog store unreachable", zap.Error(err))
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status":  status,
		"service": "cigarlens-backend",
		"version": "1.0.0",
	})
}

// RecognizeImage handles photo recognition. It accepts a multipart "image" file
// or a JSON body with base64 image data.
func (h *Handler) RecognizeImage(c *gin.Context) {
	if h.services.Recognizer == nil {
		h.unavailable(c, "recognition")
		return
	}

	image, mimeType, hint, err := readImageRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	result, err := h.services.Recognizer.RecognizeFromImage(ctx, image, mimeType, hint)
	if err != nil {
		h.respondError(c, err)
		return
	}

	response := RecognizeImageResponse{Result: result}
	if h.services.Reconciler != nil && h.services.Settings != nil && h.services.Settings.PersistResults() {
		outcome, err := h.services.Reconciler.Reconcile(ctx, result, result.ImageURL)
		if err != nil {
			// The recognition itself succeeded; persistence failures stay server-side
			h.logger.Warn("reconciliation failed",
				zap.String("brand", result.Brand),
				zap.String("name", result.Name),
				zap.Error(err))
		} else {
			response.Reconciliation = outcome
		}
	}

	c.JSON(http.StatusOK, response)
}

// RecognizeText handles lookups by cigar name and optional brand
func (h *Handler) RecognizeText(c *gin.Context) {
	if h.services.Recognizer == nil {
		h.unavailable(c, "recognition")
		return
	}

	var req RecognizeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: name is required"})
		return
	}

	result, err := h.services.Recognizer.RecognizeFromText(c.Request.Context(), req.Name, req.Brand)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetCatalogDetails returns the verified catalog entry for brand and name
func (h *Handler) GetCatalogDetails(c *gin.Context) {
	if h.services.Catalog == nil {
		h.unavailable(c, "catalog")
		return
	}

	brand, name, ok := brandAndName(c)
	if !ok {
		return
	}

	entry, err := h.services.Catalog.GetDetails(c.Request.Context(), brand, name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// GetStats returns recognition statistics for brand and name
func (h *Handler) GetStats(c *gin.Context) {
	if h.services.Stats == nil {
		h.unavailable(c, "stats")
		return
	}

	brand, name, ok := brandAndName(c)
	if !ok {
		return
	}

	stats, err := h.services.Stats.GetStats(c.Request.Context(), brand, name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ClearCache removes one cached snapshot, or all of them when brand and name are omitted
func (h *Handler) ClearCache(c *gin.Context) {
	if h.services.Cache == nil {
		h.unavailable(c, "cache")
		return
	}

	brand := strings.TrimSpace(c.Query("brand"))
	name := strings.TrimSpace(c.Query("name"))
	if (brand == "") != (name == "") {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "brand and name must be given together"})
		return
	}

	h.services.Cache.Clear(c.Request.Context(), brand, name)

	cleared := "all"
	if brand != "" {
		cleared = domain.CacheKey(brand, name)
	}
	h.logger.Info("cache cleared", zap.String("key", cleared))
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

func (h *Handler) unavailable(c *gin.Context, component string) {
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: component + " not configured"})
}

// respondError maps usecase errors onto HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}

	body := ErrorResponse{Error: err.Error()}
	var recErr *domain.RecognitionError
	if errors.As(err, &recErr) {
		body.Hints = recErr.Hints
	}
	c.JSON(status, body)
}

func statusFor(err error) int {
	var backendErr *domain.BackendError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrBackendRejected):
		if errors.As(err, &backendErr) && backendErr.StatusCode == http.StatusTooManyRequests {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrRecognitionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// brandAndName reads the required brand and name query parameters, answering 400 when missing
func brandAndName(c *gin.Context) (string, string, bool) {
	brand := strings.TrimSpace(c.Query("brand"))
	name := strings.TrimSpace(c.Query("name"))
	if brand == "" || name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "brand and name query parameters are required"})
		return "", "", false
	}
	return brand, name, true
}

// readImageRequest extracts image bytes, MIME type and hint from a multipart or JSON body
func readImageRequest(c *gin.Context) ([]byte, string, string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBytes+1<<20)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("image")
		if err != nil {
			return nil, "", "", errors.New("multipart field 'image' is required")
		}
		if header.Size > maxImageBytes {
			return nil, "", "", errors.New("image exceeds 10MB limit")
		}
		file, err := header.Open()
		if err != nil {
			return nil, "", "", errors.New("unable to read uploaded image")
		}
		defer file.Close()

		image, err := io.ReadAll(file)
		if err != nil {
			return nil, "", "", errors.New("unable to read uploaded image")
		}
		return image, header.Header.Get("Content-Type"), c.PostForm("hint"), nil
	}

	var req RecognizeImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, "", "", errors.New("invalid request: imageBase64 is required")
	}

	data, mimeType := splitDataURL(req.ImageBase64)
	if req.MIMEType != "" {
		mimeType = req.MIMEType
	}
	image, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, "", "", errors.New("imageBase64 is not valid base64")
	}
	if len(image) > maxImageBytes {
		return nil, "", "", errors.New("image exceeds 10MB limit")
	}
	return image, mimeType, req.Hint, nil
}

// splitDataURL strips a "data:<mime>;base64," prefix and returns the payload and MIME type
func splitDataURL(s string) (string, string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return s, ""
	}
	meta, payload, ok := strings.Cut(s, ",")
	if !ok {
		return s, ""
	}
	mimeType, _, _ := strings.Cut(strings.TrimPrefix(meta, "data:"), ";")
	return payload, mimeType
}
