package controller

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/handler"
	"github.com/unclebandit/smsleopard-sequencer/internal/service"
)

type LeadController struct {
	OptOutService  *service.OptOutService
	ScoringService *service.ScoringService
	Log            *zap.Logger
}

func (c *LeadController) OptOut(w http.ResponseWriter, r *http.Request) {
	id, err := handler.IDParam(r, "id")
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	result, err := c.OptOutService.OptOut(r.Context(), handler.OrganizationID(r), id)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}
	handler.JSON(w, http.StatusOK, result)
}

func (c *LeadController) Score(w http.ResponseWriter, r *http.Request) {
	id, err := handler.IDParam(r, "id")
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	score, err := c.ScoringService.ScoreLead(r.Context(), handler.OrganizationID(r), id)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}
	handler.JSON(w, http.StatusOK, score)
}

// ScoreAll reports partial success: failed leads are counted, not fatal.
func (c *LeadController) ScoreAll(w http.ResponseWriter, r *http.Request) {
	result, err := c.ScoringService.ScoreAll(r.Context(), handler.OrganizationID(r))
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}
	handler.JSON(w, http.StatusOK, result)
}
