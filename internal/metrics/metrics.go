package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shop_http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)

	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_orders_created_total",
		Help: "Total number of orders created",
	})

	PaymentWebhooks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_payment_webhooks_total",
		Help: "Total number of payment webhooks grouped by result",
	}, []string{"result"})

	ExpirationSweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_expiration_sweeps_total",
		Help: "Total number of expiration sweep runs grouped by result",
	}, []string{"result"})

	ExpiredOrders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_expired_orders_total",
		Help: "Total number of orders cancelled by the expiration sweeper",
	})
)

// HTTPリクエストの件数とレイテンシを記録するechoミドルウェア。
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := float64(time.Since(start).Milliseconds())

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			httpRequests.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			httpDuration.WithLabelValues(c.Request().Method, path).Observe(duration)

			return err
		}
	}
}
