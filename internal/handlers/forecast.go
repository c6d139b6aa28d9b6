package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"stock-analyzer-api/internal/forecast"
	"stock-analyzer-api/internal/models"
	"stock-analyzer-api/internal/services"

	"github.com/gofiber/fiber/v2"
)

type ForecastHandler struct {
	orchestrator *services.ForecastOrchestrator
	timeout      time.Duration
}

func NewForecastHandler(orchestrator *services.ForecastOrchestrator, timeout time.Duration) *ForecastHandler {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ForecastHandler{
		orchestrator: orchestrator,
		timeout:      timeout,
	}
}

// statusFor maps service and engine errors to HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, forecast.ErrEmptyInput):
		return fiber.StatusUnprocessableEntity, "Empty price series"
	case errors.Is(err, forecast.ErrMalformedData):
		return fiber.StatusUnprocessableEntity, "Malformed price data"
	case errors.Is(err, services.ErrInvalidSymbol):
		return fiber.StatusBadRequest, "Invalid symbol"
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound, "Ticker not found"
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "Upstream timeout"
	case errors.Is(err, services.ErrUpstream):
		return fiber.StatusBadGateway, "Upstream data source failed"
	default:
		return fiber.StatusInternalServerError, "Request failed"
	}
}

func writeError(c *fiber.Ctx, err error) error {
	code, title := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		log.Printf("[ERROR] %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(models.ErrorResponse{
		Error:   title,
		Message: err.Error(),
		Code:    code,
	})
}

// Analyze handles GET /v1/analyze/:symbol
func (h *ForecastHandler) Analyze(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	analysis, err := h.orchestrator.Analyze(ctx, c.Params("symbol"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(analysis)
}

// GetForecast handles POST /v1/forecast
func (h *ForecastHandler) GetForecast(c *fiber.Ctx) error {
	var req models.ForecastRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
			Code:    fiber.StatusBadRequest,
		})
	}

	f, err := h.orchestrator.ForecastRequest(req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(f)
}

// GetHistory handles GET /v1/tickers/:symbol/history
func (h *ForecastHandler) GetHistory(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	hist, err := h.orchestrator.History(ctx, c.Params("symbol"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(hist)
}

// GetTickerData handles GET /v1/tickers/:symbol
func (h *ForecastHandler) GetTickerData(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
	defer cancel()

	data, err := h.orchestrator.GetTickerData(ctx, c.Params("symbol"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(data)
}

// Search handles GET /v1/search?q=
func (h *ForecastHandler) Search(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	suggestions, err := h.orchestrator.Suggestions(ctx, c.Query("q"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"suggestions": suggestions})
}

// News handles GET /v1/news/:symbol
func (h *ForecastHandler) News(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	symbol := c.Params("symbol")
	articles, err := h.orchestrator.News(ctx, symbol)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"symbol":   symbol,
		"articles": articles,
	})
}

// RefreshCache handles POST /v1/admin/refresh
func (h *ForecastHandler) RefreshCache(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 60*time.Second)
	defer cancel()

	err := h.orchestrator.RefreshCache(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to refresh cache",
			Message: err.Error(),
			Code:    fiber.StatusInternalServerError,
		})
	}

	return c.JSON(fiber.Map{
		"message": "Cache refreshed successfully",
		"time":    time.Now(),
	})
}

// CustomErrorHandler handles Fiber errors
func CustomErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(models.ErrorResponse{
		Error:   "Request failed",
		Message: err.Error(),
		Code:    code,
	})
}
