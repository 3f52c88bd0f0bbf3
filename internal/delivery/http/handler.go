package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kitchenstock/scanner/internal/domain"
	"github.com/kitchenstock/scanner/internal/infrastructure/catalog"
	"github.com/kitchenstock/scanner/internal/usecase"
)

// statusClientClosedRequest is the non-standard status logged when the client
// goes away mid-scan
const statusClientClosedRequest = 499

// Scanner runs the scan pipeline
type Scanner interface {
	ProcessDeliveryImage(ctx context.Context, image []byte, catalog []domain.ProductCatalogEntry, onProgress domain.ProgressFunc) (*domain.OCRResult, error)
	ProcessRecipeImage(ctx context.Context, image []byte, catalog []domain.ProductCatalogEntry, onProgress domain.ProgressFunc) (*domain.ParsedRecipe, error)
	ConfirmCorrections(ctx context.Context, items []domain.MatchedItem, catalog []domain.ProductCatalogEntry) (int, error)
}

// Corrections is the Correction Memory as seen by the HTTP surface
type Corrections interface {
	Lookup(ctx context.Context, normalizedName string) (*domain.Correction, error)
	Record(ctx context.Context, rawName, productID, productName string) error
	List(ctx context.Context) ([]domain.Correction, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	scanner     Scanner
	corrections Corrections
	catalog     domain.CatalogProvider
}

// NewHandler creates a new HTTP handler. catalog may be nil, in which case
// every scan request must carry its own catalog.
func NewHandler(scanner Scanner, corrections Corrections, catalog domain.CatalogProvider) *Handler {
	return &Handler{
		scanner:     scanner,
		corrections: corrections,
		catalog:     catalog,
	}
}

type recordCorrectionRequest struct {
	RawName     string `json:"rawName" binding:"required"`
	ProductID   string `json:"productId" binding:"required"`
	ProductName string `json:"productName"`
}

type confirmRequest struct {
	Catalog []domain.ProductCatalogEntry `json:"catalog"`
	Items   []domain.MatchedItem         `json:"items"`
}

type sseEvent struct {
	name string
	data any
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	products := 0
	if h.catalog != nil {
		products = h.catalog.Len()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"service":         "kitchenscan",
		"version":         "1.0.0",
		"catalogProducts": products,
	})
}

// ScanDelivery handles delivery note uploads
func (h *Handler) ScanDelivery(c *gin.Context) {
	h.scan(c, func(ctx context.Context, image []byte, products []domain.ProductCatalogEntry, onProgress domain.ProgressFunc) (any, error) {
		return h.scanner.ProcessDeliveryImage(ctx, image, products, onProgress)
	})
}

// ScanRecipe handles recipe sheet uploads
func (h *Handler) ScanRecipe(c *gin.Context) {
	h.scan(c, func(ctx context.Context, image []byte, products []domain.ProductCatalogEntry, onProgress domain.ProgressFunc) (any, error) {
		return h.scanner.ProcessRecipeImage(ctx, image, products, onProgress)
	})
}

type scanFunc func(ctx context.Context, image []byte, products []domain.ProductCatalogEntry, onProgress domain.ProgressFunc) (any, error)

// scan reads the multipart upload and runs fn, either returning JSON or
// streaming progress as server-sent events when the client asks for it
func (h *Handler) scan(c *gin.Context, fn scanFunc) {
	if h.scanner == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "scanning is not configured"})
		return
	}

	image, err := readImage(c)
	if err != nil {
		writeError(c, err)
		return
	}

	products, err := h.requestCatalog(c.PostForm("catalog"))
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()

	if !strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		result, err := fn(ctx, image, products, nil)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	events := make(chan sseEvent, 16)
	send := func(ev sseEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(events)
		result, err := fn(ctx, image, products, func(p domain.Progress) {
			send(sseEvent{name: "progress", data: p})
		})
		if err != nil {
			status, msg := errorStatus(err)
			send(sseEvent{name: "error", data: gin.H{"status": status, "error": msg}})
			return
		}
		send(sseEvent{name: "result", data: result})
	}()

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(ev.name, ev.data)
		return ev.name == "progress"
	})
}

// ConfirmScan records the user's manual corrections from a reviewed scan
func (h *Handler) ConfirmScan(c *gin.Context) {
	if h.scanner == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "scanning is not configured"})
		return
	}

	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	products := req.Catalog
	if len(products) == 0 && h.catalog != nil {
		products = h.catalog.Snapshot()
	}

	recorded, err := h.scanner.ConfirmCorrections(c.Request.Context(), req.Items, products)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recorded": recorded})
}

// RecordCorrection stores a single user correction. A storage failure is
// reported as not recorded, never as a server error.
func (h *Handler) RecordCorrection(c *gin.Context) {
	var req recordCorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.corrections.Record(c.Request.Context(), req.RawName, req.ProductID, req.ProductName)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"recorded": true})
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("[HTTP] Correction for %q not recorded: %v", req.RawName, err)
		c.JSON(http.StatusAccepted, gin.H{"recorded": false})
	}
}

// LookupCorrection returns the stored correction for ?name=
func (h *Handler) LookupCorrection(c *gin.Context) {
	name := usecase.NormalizeName(c.Query("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter is required"})
		return
	}

	correction, err := h.corrections.Lookup(c.Request.Context(), name)
	if err != nil {
		writeError(c, err)
		return
	}
	if correction == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no correction for " + name})
		return
	}
	c.JSON(http.StatusOK, correction)
}

// ListCorrections returns all stored corrections
func (h *Handler) ListCorrections(c *gin.Context) {
	corrections, err := h.corrections.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"corrections": corrections})
}

// requestCatalog decodes the catalog sent with the request, falling back to
// the configured one
func (h *Handler) requestCatalog(raw string) ([]domain.ProductCatalogEntry, error) {
	if strings.TrimSpace(raw) != "" {
		return catalog.Decode([]byte(raw))
	}
	if h.catalog == nil {
		return nil, domain.ErrCatalogUnavailable
	}
	return h.catalog.Snapshot(), nil
}

func readImage(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile("image")
	if err != nil {
		return nil, uploadError(err)
	}

	f, err := header.Open()
	if err != nil {
		return nil, errors.Join(domain.ErrInvalidRequest, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, uploadError(err)
	}
	return data, nil
}

// uploadError tells a body cut off by http.MaxBytesReader apart from a
// malformed upload
func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit is %d bytes", domain.ErrUploadTooLarge, tooLarge.Limit)
	}
	return errors.Join(domain.ErrInvalidRequest, err)
}

func writeError(c *gin.Context, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[HTTP] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrRecognition):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrCatalogUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, domain.ErrCorrectionStore):
		return http.StatusServiceUnavailable, "correction memory unavailable"
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "scan cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "scan timed out"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
