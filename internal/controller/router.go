package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/handler"
	"github.com/unclebandit/smsleopard-sequencer/internal/logger"
)

// API groups the controllers mounted by NewRouter.
type API struct {
	Campaigns  *CampaignController
	Stats      *handler.CampaignHandler
	Sequences  *SequenceController
	Audiences  *AudienceController
	Leads      *LeadController
	Broadcasts *BroadcastController
	Cycles     *CycleController
	Log        *zap.Logger
}

func NewRouter(api API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.Middleware(api.Log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		handler.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(handler.RequireOrganization)

		// Campaign routes
		r.Post("/campaigns", api.Campaigns.CreateCampaign)
		r.Get("/campaigns", api.Campaigns.ListCampaigns)
		r.Get("/campaigns/{id}", api.Campaigns.GetCampaignDetails)
		r.Get("/campaigns/{id}/stats", api.Stats.GetCampaignHandlerWithStats)
		r.Post("/campaigns/{id}/audience", api.Campaigns.LinkAudience)
		r.Post("/campaigns/{id}/enroll", api.Campaigns.Enroll)
		r.Post("/campaigns/{id}/pause", api.Campaigns.Pause)
		r.Post("/campaigns/{id}/resume", api.Campaigns.Resume)
		r.Post("/campaigns/{id}/complete", api.Campaigns.Complete)
		r.Post("/campaigns/{id}/archive", api.Campaigns.Archive)

		// Sequence routes
		r.Post("/campaigns/{id}/sequences", api.Sequences.CreateSequence)
		r.Get("/sequences/{id}/steps", api.Sequences.Steps)
		r.Post("/sequences/{id}/steps", api.Sequences.AddStep)
		r.Post("/sequences/{id}/activate", api.Sequences.Activate)

		r.Post("/cycles/run", api.Cycles.RunCycle)

		r.Post("/audiences", api.Audiences.CreateAudience)
		r.Post("/audiences/preview", api.Audiences.Preview)
		r.Post("/audiences/{id}/refresh", api.Audiences.Refresh)

		r.Post("/leads/score", api.Leads.ScoreAll)
		r.Post("/leads/{id}/score", api.Leads.Score)
		r.Post("/leads/{id}/opt-out", api.Leads.OptOut)

		r.Post("/broadcasts", api.Broadcasts.CreateBroadcast)
		r.Get("/broadcasts/{id}", api.Broadcasts.GetBroadcast)
		r.Post("/broadcasts/{id}/send", api.Broadcasts.SendBroadcast)
	})

	return r
}
