package controller

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/handler"
	"github.com/unclebandit/smsleopard-sequencer/internal/service"
)

// CycleController triggers one runner cycle for the caller's organization.
type CycleController struct {
	Runner *service.Runner
	Log    *zap.Logger
}

func (c *CycleController) RunCycle(w http.ResponseWriter, r *http.Request) {
	result, err := c.Runner.RunCycle(r.Context(), handler.OrganizationID(r))
	if err != nil {
		handler.Fail(w, c.Log, err)
		return
	}
	handler.JSON(w, http.StatusOK, result)
}
