package controller

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/handler"
	"github.com/unclebandit/smsleopard-sequencer/internal/service"
)

type BroadcastController struct {
	BroadcastService *service.BroadcastService
	Log              *zap.Logger
}

func (c *BroadcastController) CreateBroadcast(w http.ResponseWriter, r *http.Request) {
	var body service.CreateBroadcastInput
	if err := handler.Decode(r, &body); err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	b, err := c.BroadcastService.Create(r.Context(), handler.OrganizationID(r), body)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}
	handler.JSON(w, http.StatusCreated, b)
}

// SendBroadcast answers 202 when dispatch runs on the queue; the returned
// broadcast is then still sending.
func (c *BroadcastController) SendBroadcast(w http.ResponseWriter, r *http.Request) {
	id, err := handler.IDParam(r, "id")
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	b, err := c.BroadcastService.Send(r.Context(), handler.OrganizationID(r), id)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}
	status := http.StatusOK
	if c.BroadcastService.Queue != nil {
		status = http.StatusAccepted
	}
	handler.JSON(w, status, b)
}

func (c *BroadcastController) GetBroadcast(w http.ResponseWriter, r *http.Request) {
	id, err := handler.IDParam(r, "id")
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}

	b, err := c.BroadcastService.Get(r.Context(), handler.OrganizationID(r), id)
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}
	handler.JSON(w, http.StatusOK, b)
}
