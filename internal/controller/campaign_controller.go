// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/handler"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
	"github.com/unclebandit/smsleopard-sequencer/internal/service"
)

type CampaignController struct {
	CampaignService   *service.CampaignService
	EnrollmentService *service.EnrollmentService
	Log               *zap.Logger
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body service.CreateCampaignInput
	if err := handler.Decode(r, &body); err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), handler.OrganizationID(r), body)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	handler.JSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	// Parse query parameters; the service clamps bad values
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), handler.OrganizationID(r), page, pageSize, status)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	handler.JSON(w, http.StatusOK, map[string]any{
		"campaigns":  campaigns,
		"pagination": pagination, // already contains total_count, total_pages, page, page_size
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, err := handler.IDParam(r, "id")
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	campaign, err := c.CampaignService.GetCampaignDetails(r.Context(), handler.OrganizationID(r), id)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	handler.JSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) LinkAudience(w http.ResponseWriter, r *http.Request) {
	id, err := handler.IDParam(r, "id")
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}
	var body struct {
		AudienceID int `json:"audience_id"`
	}
	if err := handler.Decode(r, &body); err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	campaign, err := c.CampaignService.LinkAudience(r.Context(), handler.OrganizationID(r), id, body.AudienceID)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	handler.JSON(w, http.StatusOK, campaign)
}

// Enroll adds the campaign's current audience. Preconditions come back as
// 409 or 422 and are not worth retrying.
func (c *CampaignController) Enroll(w http.ResponseWriter, r *http.Request) {
	id, err := handler.IDParam(r, "id")
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	result, err := c.EnrollmentService.Enroll(r.Context(), handler.OrganizationID(r), id)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	handler.JSON(w, http.StatusOK, result)
}

func (c *CampaignController) Pause(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.CampaignService.Pause)
}

func (c *CampaignController) Resume(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.CampaignService.Resume)
}

func (c *CampaignController) Complete(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.CampaignService.Complete)
}

func (c *CampaignController) Archive(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.CampaignService.Archive)
}

func (c *CampaignController) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, orgID, id int) (*model.Campaign, error)) {
	id, err := handler.IDParam(r, "id")
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	campaign, err := apply(r.Context(), handler.OrganizationID(r), id)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	handler.JSON(w, http.StatusOK, campaign)
}
