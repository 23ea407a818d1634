// internal/handler/campaign_handler.go
package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/logger"
	"github.com/unclebandit/smsleopard-sequencer/internal/service"
)

// CampaignHandler serves the campaign stats view.
type CampaignHandler struct {
	Service *service.CampaignService
	Log     *zap.Logger
}

func NewCampaignHandler(svc *service.CampaignService, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{Service: svc, Log: log}
}

// GetCampaignHandlerWithStats returns the campaign with enrollment counts by
// status and the most recently updated enrollments.
func (h *CampaignHandler) GetCampaignHandlerWithStats(w http.ResponseWriter, r *http.Request) {
	id, err := IDParam(r, "id")
	if err != nil {
		Fail(w, h.Log, err)
		return
	}

	details, err := h.Service.GetCampaignDetailsWithStats(r.Context(), OrganizationID(r), id)
	if err != nil {
		Fail(w, h.Log, err)
		return
	}

	logger.OrNop(h.Log).Debug("campaign stats served", zap.Int("campaign_id", id), zap.Int("total", details.Stats["total"]))
	JSON(w, http.StatusOK, details)
}
