package http

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/jkarimi/sms-campaigns/internal/http/middleware"
	"github.com/jkarimi/sms-campaigns/internal/model"
	"github.com/jkarimi/sms-campaigns/internal/service/campaign"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type createCampaignReq struct {
	Body string `json:"body"`
}

type campaignResp struct {
	ID             string  `json:"id"`
	Body           string  `json:"body"`
	State          string  `json:"state"`
	RecipientCount int     `json:"recipient_count"`
	SuccessCount   int     `json:"success_count"`
	FailedCount    int     `json:"failed_count"`
	TotalCost      float64 `json:"total_cost"`
}

func toCampaignResp(c *model.Campaign) campaignResp {
	return campaignResp{
		ID:             c.ID,
		Body:           c.Body,
		State:          c.State.String(),
		RecipientCount: c.RecipientCount,
		SuccessCount:   c.SuccessCount,
		FailedCount:    c.FailedCount,
		TotalCost:      c.TotalCost,
	}
}

func createCampaignHandler(svc *campaign.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createCampaignReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		req.Body = strings.TrimSpace(req.Body)
		if req.Body == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "body is required"})
		}
		if utf8.RuneCountInString(req.Body) > 1600 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "body too long"})
		}

		tenantID, ok := middleware.TenantIDFromCtx(c)
		if !ok || tenantID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		cm, err := svc.Create(c.Request().Context(), tenantID, req.Body)
		if err != nil {
			log.Errorf("create campaign failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusCreated, toCampaignResp(cm))
	}
}

func getCampaignHandler(svc *campaign.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, _ := middleware.TenantIDFromCtx(c)
		cm, err := svc.Get(c.Request().Context(), tenantID, c.Param("id"))
		if err != nil {
			return campaignError(c, err)
		}
		return c.JSON(http.StatusOK, toCampaignResp(cm))
	}
}

type addRecipientsReq struct {
	Recipients []campaign.RecipientInput `json:"recipients"`
	// Numbers is a free-form alternative: comma/newline separated phones.
	Numbers string `json:"numbers"`
}

func addRecipientsHandler(svc *campaign.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req addRecipientsReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		inputs := req.Recipients
		inputs = append(inputs, campaign.ParseManualNumbers(req.Numbers)...)
		if len(inputs) == 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "no recipients given"})
		}

		tenantID, _ := middleware.TenantIDFromCtx(c)
		n, err := svc.AddRecipients(c.Request().Context(), tenantID, c.Param("id"), inputs)
		if err != nil {
			return campaignError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]int{"added": n})
	}
}

func listRecipientsHandler(svc *campaign.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, _ := middleware.TenantIDFromCtx(c)
		recs, err := svc.Recipients(c.Request().Context(), tenantID, c.Param("id"))
		if err != nil {
			return campaignError(c, err)
		}

		type recipientResp struct {
			Name              string  `json:"name,omitempty"`
			Phone             string  `json:"phone"`
			Status            string  `json:"status"`
			FailureReason     string  `json:"failure_reason,omitempty"`
			ProviderMessageID string  `json:"provider_message_id,omitempty"`
			Cost              float64 `json:"cost"`
		}
		out := make([]recipientResp, 0, len(recs))
		for _, r := range recs {
			out = append(out, recipientResp{
				Name:              r.Name,
				Phone:             r.Phone,
				Status:            r.Status.String(),
				FailureReason:     r.FailureReason,
				ProviderMessageID: r.ProviderMessageID,
				Cost:              r.Cost,
			})
		}
		return c.JSON(http.StatusOK, map[string]any{"recipients": out})
	}
}

func sendCampaignHandler(svc *campaign.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, _ := middleware.TenantIDFromCtx(c)
		cm, err := svc.Send(c.Request().Context(), tenantID, c.Param("id"))
		if err != nil {
			return campaignError(c, err)
		}
		return c.JSON(http.StatusAccepted, toCampaignResp(cm))
	}
}

func campaignError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, campaign.ErrCampaignNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "campaign not found"})
	case errors.Is(err, campaign.ErrNotSendable):
		return c.JSON(http.StatusConflict, map[string]string{"error": "campaign is not sendable in its current state"})
	case errors.Is(err, campaign.ErrNoRecipients):
		return c.JSON(http.StatusConflict, map[string]string{"error": "campaign has no recipients to send to"})
	case errors.Is(err, campaign.ErrEmptyBody):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "body is required"})
	default:
		log.Errorf("campaign request failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
	}
}
