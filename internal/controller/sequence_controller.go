package controller

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/handler"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
	"github.com/unclebandit/smsleopard-sequencer/internal/service"
)

type SequenceController struct {
	SequenceService *service.SequenceService
	Log             *zap.Logger
}

func (c *SequenceController) CreateSequence(w http.ResponseWriter, r *http.Request) {
	campaignID, err := handler.IDParam(r, "id")
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}
	var body struct {
		Name        string `json:"name"`
		TriggerType string `json:"trigger_type"`
	}
	if err := handler.Decode(r, &body); err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	seq, err := c.SequenceService.CreateSequence(r.Context(), handler.OrganizationID(r), campaignID, body.Name, body.TriggerType)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}
	handler.JSON(w, http.StatusCreated, seq)
}

func (c *SequenceController) AddStep(w http.ResponseWriter, r *http.Request) {
	sequenceID, err := handler.IDParam(r, "id")
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}
	var step model.Step
	if err := handler.Decode(r, &step); err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	added, err := c.SequenceService.AddStep(r.Context(), handler.OrganizationID(r), sequenceID, step)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}
	handler.JSON(w, http.StatusCreated, added)
}

func (c *SequenceController) Steps(w http.ResponseWriter, r *http.Request) {
	sequenceID, err := handler.IDParam(r, "id")
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	steps, err := c.SequenceService.Steps(r.Context(), handler.OrganizationID(r), sequenceID)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}
	handler.JSON(w, http.StatusOK, steps)
}

func (c *SequenceController) Activate(w http.ResponseWriter, r *http.Request) {
	sequenceID, err := handler.IDParam(r, "id")
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	seq, err := c.SequenceService.Activate(r.Context(), handler.OrganizationID(r), sequenceID)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}
	handler.JSON(w, http.StatusOK, seq)
}
