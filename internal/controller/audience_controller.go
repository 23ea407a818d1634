package controller

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/handler"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
	"github.com/unclebandit/smsleopard-sequencer/internal/service"
)

type AudienceController struct {
	AudienceService *service.AudienceService
	Log             *zap.Logger
}

func (c *AudienceController) CreateAudience(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name         string             `json:"name"`
		Type         model.AudienceType `json:"type"`
		FilterConfig model.Filter       `json:"filter_config"`
	}
	if err := handler.Decode(r, &body); err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	aud, err := c.AudienceService.Create(r.Context(), handler.OrganizationID(r), body.Name, body.Type, body.FilterConfig)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}
	handler.JSON(w, http.StatusCreated, aud)
}

// Preview counts the leads a filter would select right now, opt-outs excluded.
func (c *AudienceController) Preview(w http.ResponseWriter, r *http.Request) {
	var f model.Filter
	if err := handler.Decode(r, &f); err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	count, err := c.AudienceService.Preview(r.Context(), handler.OrganizationID(r), f)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}
	handler.JSON(w, http.StatusOK, map[string]int{"count": count})
}

func (c *AudienceController) Refresh(w http.ResponseWriter, r *http.Request) {
	id, err := handler.IDParam(r, "id")
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	aud, err := c.AudienceService.RefreshCount(r.Context(), handler.OrganizationID(r), id)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}
	handler.JSON(w, http.StatusOK, aud)
}
