// Package server exposes the admin HTTP API: health, metrics, on-demand
// classification and verdict lookup.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xaenox/mailsift/internal/models"
	"github.com/xaenox/mailsift/internal/storage"
	"go.uber.org/zap"
)

type Processor interface {
	Process(ctx context.Context, msg models.Message) (models.Outcome, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	processor Processor
	store     storage.Storage
	checks    map[string]HealthCheck
	logger    *zap.Logger
}

func NewHandler(processor Processor, store storage.Storage, checks map[string]HealthCheck, logger *zap.Logger) *Handler {
	return &Handler{processor: processor, store: store, checks: checks, logger: logger}
}

// Router wires the routes. gatherer backs /metrics.
func (h *Handler) Router(gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(h.logger))

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	v1.POST("/classify", h.Classify)
	v1.GET("/verdicts/:id", h.Verdict)
	return r
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": results})
}

type classifyRequest struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body" binding:"required"`
	Sender  string `json:"sender"`
}

type classifyResponse struct {
	Verdict     models.Verdict            `json:"verdict"`
	Extractions []models.ExtractionResult `json:"extractions"`
}

// Classify handles POST /v1/classify.
func (h *Handler) Classify(c *gin.Context) {
	requestID := c.GetString("request_id")

	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "Failed to parse request body: "+err.Error())
		return
	}

	msgID := req.ID
	if msgID == "" {
		msgID = requestID
	}
	msg := models.Message{
		ID:         msgID,
		Subject:    req.Subject,
		Body:       req.Body,
		Sender:     req.Sender,
		ReceivedAt: time.Now(),
	}

	// processing runs to completion after the client hangs up
	out, err := h.processor.Process(context.WithoutCancel(c.Request.Context()), msg)
	if err != nil {
		h.logger.Error("Classification request failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		writeError(c, http.StatusInternalServerError, "processing_error", err.Error())
		return
	}

	extractions := out.Extractions
	if extractions == nil {
		extractions = []models.ExtractionResult{}
	}
	c.JSON(http.StatusOK, classifyResponse{Verdict: out.Verdict, Extractions: extractions})
}

// Verdict handles GET /v1/verdicts/:id.
func (h *Handler) Verdict(c *gin.Context) {
	id := c.Param("id")

	v, err := h.store.GetVerdict(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(c, http.StatusNotFound, "not_found", "no verdict for message "+id)
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}

	extractions, err := h.store.ListExtractions(c.Request.Context(), id)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	if extractions == nil {
		extractions = []models.ExtractionResult{}
	}
	c.JSON(http.StatusOK, classifyResponse{Verdict: *v, Extractions: extractions})
}

func writeError(c *gin.Context, status int, kind, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"type":    kind,
			"message": message,
		},
	})
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
