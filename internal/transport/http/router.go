package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/sakashimaa/banobox-orders/internal/transport/http/handler"
	"github.com/sakashimaa/banobox-orders/pkg/metrics"
)

type Handlers struct {
	Order *handler.OrderHandler
}

func RegisterRoutes(app *fiber.App, h *Handlers, auth fiber.Handler, m *metrics.Metrics) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	api := app.Group("/api", auth)

	api.Post("/order", h.Order.PlaceOrder)
	api.Get("/my/orders", h.Order.ListMyOrders)

	orders := api.Group("/orders")
	orders.Get("", h.Order.ListMyOrders)
	orders.Get("/:id", h.Order.GetOrder)
	orders.Get("/:id/items", h.Order.GetOrderItems)
}
