package handler

import (
	"net/http"
	"strconv"
	"time"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /admin/ordersのHTTP（ADMINのみ）
type AdminOrderHandler struct {
	orders     *usecase.AdminOrderUsecase
	payments   *usecase.PaymentUsecase
	expiration *usecase.ExpirationUsecase
	inventory  *usecase.AdminInventoryUsecase
}

// DI
func NewAdminOrderHandler(
	orders *usecase.AdminOrderUsecase,
	payments *usecase.PaymentUsecase,
	expiration *usecase.ExpirationUsecase,
	inventory *usecase.AdminInventoryUsecase,
) *AdminOrderHandler {
	return &AdminOrderHandler{orders: orders, payments: payments, expiration: expiration, inventory: inventory}
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/admin")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))
	g.Use(middleware.AdminRoleGuard())

	g.GET("/orders", h.list)
	g.GET("/orders/:id", h.detail)
	g.PATCH("/orders/:id/status", h.updateStatus)
	g.POST("/orders/:id/confirm-payment", h.confirmPayment)
	g.POST("/orders/expiration/sweep", h.sweep)
	g.PATCH("/variants/:sku/stock", h.setStock)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	f := repository.AdminOrderListFilter{Page: 1, Limit: 20}

	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page"})
		}
		f.Page = p
	}
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		f.Limit = l
	}

	f.Status = c.QueryParam("status")

	if v := c.QueryParam("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
		}
		f.UserID = &id
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from"})
		}
		f.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to"})
		}
		f.To = &t
	}

	out, err := h.orders.List(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) detail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	order, items, histories, err := h.orders.GetDetail(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"order":     order,
		"items":     items,
		"histories": histories,
	})
}

func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	operatorID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req usecase.UpdateOrderStatusInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.orders.UpdateStatus(c.Request().Context(), id, operatorID, req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// 窓口入金・メモ不備の救済。担当者が注文を直接paidにする。
func (h *AdminOrderHandler) confirmPayment(c echo.Context) error {
	operatorID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req usecase.ConfirmPaymentInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.payments.ConfirmPayment(c.Request().Context(), operatorID, id, req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// 定期掃除とは別に手で一回まわす
func (h *AdminOrderHandler) sweep(c echo.Context) error {
	res, err := h.expiration.Sweep(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

// 棚卸しでの在庫直接調整
func (h *AdminOrderHandler) setStock(c echo.Context) error {
	sku := c.Param("sku")

	var req usecase.SetStockInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	v, err := h.inventory.SetStock(c.Request().Context(), sku, req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, v)
}
