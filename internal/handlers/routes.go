package handlers

import "github.com/gofiber/fiber/v2"

// Register mounts all API routes on app.
func Register(app *fiber.App, fh *ForecastHandler, hh *HealthHandler) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "Stock Analyzer API",
			"version": hh.version,
			"status":  "running",
		})
	})

	app.Get("/health", hh.Health)
	app.Get("/health/ready", hh.Ready)

	// API v1 routes
	v1 := app.Group("/v1")
	v1.Get("/search", fh.Search)
	v1.Get("/news/:symbol", fh.News)
	v1.Get("/analyze/:symbol", fh.Analyze)
	v1.Get("/tickers/:symbol", fh.GetTickerData)
	v1.Get("/tickers/:symbol/history", fh.GetHistory)
	v1.Post("/forecast", fh.GetForecast)
	v1.Post("/admin/refresh", fh.RefreshCache)
}
