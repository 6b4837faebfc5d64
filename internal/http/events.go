package http

import (
	"net/http"
	"strconv"

	"github.com/jkarimi/sms-campaigns/internal/http/middleware"
	"github.com/jkarimi/sms-campaigns/internal/repository"
	"github.com/jkarimi/sms-campaigns/internal/service/campaign"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// listDeliveryEventsHandler serves the raw webhook audit trail for a campaign
// out of ClickHouse. Ownership is checked against MySQL first.
func listDeliveryEventsHandler(svc *campaign.Service, events repository.DeliveryEventsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, _ := middleware.TenantIDFromCtx(c)
		campaignID := c.Param("id")
		if _, err := svc.Get(c.Request().Context(), tenantID, campaignID); err != nil {
			return campaignError(c, err)
		}

		if events == nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "event store not configured"})
		}

		limit, _ := strconv.Atoi(c.QueryParam("limit"))
		offset, _ := strconv.Atoi(c.QueryParam("offset"))

		rows, err := events.ListByCampaign(c.Request().Context(), campaignID, limit, offset)
		if err != nil {
			log.Errorf("list delivery events failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		type eventResp struct {
			Token             string `json:"token"`
			ProviderStatus    string `json:"provider_status"`
			ProviderMessageID string `json:"provider_message_id,omitempty"`
			Phone             string `json:"phone,omitempty"`
			NetworkCode       string `json:"network_code,omitempty"`
			Result            string `json:"result"`
		}
		out := make([]eventResp, 0, len(rows))
		for _, ev := range rows {
			out = append(out, eventResp{
				Token:             ev.Token,
				ProviderStatus:    ev.ProviderStatus,
				ProviderMessageID: ev.ProviderMessageID,
				Phone:             ev.Phone,
				NetworkCode:       ev.NetworkCode,
				Result:            ev.Result,
			})
		}
		return c.JSON(http.StatusOK, map[string]any{"events": out})
	}
}
