package handler

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"app/internal/config"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 銀行の入金WebhookのHTTP。
// 署名以外のエラーは全部200で返す（ゲートウェイの再送ループを止める）。
type WebhookHandler struct {
	uc  *usecase.PaymentUsecase
	cfg config.Config
}

func NewWebhookHandler(uc *usecase.PaymentUsecase, cfg config.Config) *WebhookHandler {
	return &WebhookHandler{uc: uc, cfg: cfg}
}

func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/payment", h.receive)
}

func (h *WebhookHandler) receive(c echo.Context) error {
	if !h.verifySignature(c.Request()) {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid signature"})
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusOK, usecase.WebhookResult{Success: false, Error: "unreadable body"})
	}

	res := h.uc.HandleWebhook(c.Request().Context(), body)
	return c.JSON(http.StatusOK, res)
}

// 共有シークレットの照合。x-signature または Authorization（Apikey/Bearer接頭辞は剥がす）。
// シークレット未設定なら検証しない。
func (h *WebhookHandler) verifySignature(r *http.Request) bool {
	secret := h.cfg.WebhookSecret
	if secret == "" {
		return true
	}

	got := r.Header.Get("x-signature")
	if got == "" {
		got = r.Header.Get("Authorization")
		got = strings.TrimPrefix(got, "Apikey ")
		got = strings.TrimPrefix(got, "Bearer ")
	}
	if got == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}
