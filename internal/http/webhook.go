package http

import (
	"net/http"

	"github.com/jkarimi/sms-campaigns/internal/service/reconcile"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// deliveryWebhookHandler receives the provider's delivery reports. The URL
// carries the dispatch token; the body is the provider's form post. Unknown
// tokens and stale reports still return 200 so the provider stops retrying.
func deliveryWebhookHandler(sink *reconcile.Sink) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Param("token")
		if token == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing token"})
		}

		status := c.FormValue("status")
		if status == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing status"})
		}
		providerMessageID := c.FormValue("id")
		phone := c.FormValue("phoneNumber")
		networkCode := c.FormValue("networkCode")

		err := sink.ApplyDeliveryUpdate(c.Request().Context(), token, status, providerMessageID, phone, networkCode)
		if err != nil {
			log.Errorf("delivery webhook failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.String(http.StatusOK, "ok")
	}
}
