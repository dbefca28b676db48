package server

import (
	"app/internal/config"
	"app/internal/handler"
	"app/internal/repository"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ハンドラ一式。mainで組み立ててここに渡す。
type Deps struct {
	Cfg      config.Config
	UserRepo repository.UserRepository

	Auth       *handler.AuthHandler
	Products   *handler.ProductHandler
	Cart       *handler.CartHandler
	Orders     *handler.OrderHandler
	Webhooks   *handler.WebhookHandler
	AdminOrder *handler.AdminOrderHandler
}

func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(200)
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	d.Auth.RegisterRoutes(e, d.Cfg, d.UserRepo)
	d.Products.RegisterRoutes(e)
	d.Cart.RegisterRoutes(e, d.Cfg, d.UserRepo)
	d.Orders.RegisterRoutes(e, d.Cfg, d.UserRepo)
	d.Webhooks.RegisterRoutes(e)
	d.AdminOrder.RegisterRoutes(e, d.Cfg, d.UserRepo)
}
