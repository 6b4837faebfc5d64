package http

import (
	"errors"
	"net/http"

	"github.com/jkarimi/sms-campaigns/internal/gateway"
	"github.com/jkarimi/sms-campaigns/internal/http/middleware"
	"github.com/jkarimi/sms-campaigns/internal/model"
	"github.com/jkarimi/sms-campaigns/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// balanceHandler proxies the tenant's gateway credit balance. The gateway is
// queried live on every call; there is no caching.
func balanceHandler(tenants repository.TenantsRepository, opts gateway.ATOpts) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, _ := middleware.TenantIDFromCtx(c)
		t, err := tenants.GetByID(c.Request().Context(), tenantID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if t == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		provider, err := gateway.ForConfig(t.GatewayConfig, opts)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		balance, err := provider.Balance(c.Request().Context(), t.GatewayConfig)
		if err != nil {
			if errors.Is(err, model.ErrConfigurationMissing) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "gateway credentials not configured"})
			}
			log.Errorf("balance query failed: %v", err)
			return c.JSON(http.StatusBadGateway, map[string]string{"error": "gateway unreachable"})
		}

		return c.JSON(http.StatusOK, map[string]string{
			"provider": provider.Name(),
			"balance":  balance,
		})
	}
}
