// Package app wires configuration into repositories and services. Every
// process entrypoint builds one App and closes it on shutdown.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/config"
	"github.com/unclebandit/smsleopard-sequencer/internal/controller"
	"github.com/unclebandit/smsleopard-sequencer/internal/db"
	"github.com/unclebandit/smsleopard-sequencer/internal/handler"
	"github.com/unclebandit/smsleopard-sequencer/internal/lock"
	"github.com/unclebandit/smsleopard-sequencer/internal/logger"
	"github.com/unclebandit/smsleopard-sequencer/internal/pacing"
	"github.com/unclebandit/smsleopard-sequencer/internal/repository"
	"github.com/unclebandit/smsleopard-sequencer/internal/sender"
	"github.com/unclebandit/smsleopard-sequencer/internal/service"
)

// mockFailureRate matches a transport that fails roughly one send in ten.
const mockFailureRate = 0.1

type Repositories struct {
	Leads       repository.LeadRepositoryInterface
	Audiences   repository.AudienceRepositoryInterface
	Campaigns   repository.CampaignRepositoryInterface
	Sequences   repository.SequenceRepositoryInterface
	Enrollments repository.EnrollmentRepositoryInterface
	Broadcasts  repository.BroadcastRepositoryInterface
}

// SQLRepositories backs every repository with one database handle.
func SQLRepositories(conn *sql.DB) Repositories {
	return Repositories{
		Leads:       &repository.LeadRepository{DB: conn},
		Audiences:   &repository.AudienceRepository{DB: conn},
		Campaigns:   &repository.CampaignRepository{DB: conn},
		Sequences:   &repository.SequenceRepository{DB: conn},
		Enrollments: &repository.EnrollmentRepository{DB: conn},
		Broadcasts:  &repository.BroadcastRepository{DB: conn},
	}
}

// MemoryRepositories serves every repository from one in-process store.
func MemoryRepositories(store *repository.MemoryStore) Repositories {
	return Repositories{
		Leads:       store,
		Audiences:   store.Audiences(),
		Campaigns:   store.Campaigns(),
		Sequences:   store.Sequences(),
		Enrollments: store.Enrollments(),
		Broadcasts:  store.Broadcasts(),
	}
}

type App struct {
	Config config.Config
	Log    *zap.Logger

	Audiences  *service.AudienceService
	Scoring    *service.ScoringService
	Campaigns  *service.CampaignService
	Sequences  *service.SequenceService
	Enrollment *service.EnrollmentService
	Runner     *service.Runner
	OptOut     *service.OptOutService
	Broadcasts *service.BroadcastService

	closers []func() error
}

// Build opens the database, the optional redis lock store and the configured
// sender, then wires the services.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	log = logger.OrNop(log)
	a := &App{Config: cfg, Log: log}

	conn, err := db.Open(ctx, cfg.DB.Driver, cfg.PostgresDSN(), db.PoolConfig{})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, conn.Close)

	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.Redis.Addr != "" {
		rdb, err := lock.OpenRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		locker = lock.NewRedisLocker(rdb)
	} else {
		log.Warn("REDIS_ADDR not set, enrollment and broadcast locks are process-local")
	}

	var out sender.Sender
	switch cfg.App.Sender {
	case "amqp":
		s, err := sender.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		out = s
	default:
		out = sender.NewMockSender(mockFailureRate)
	}

	if err := a.Wire(SQLRepositories(conn), locker, out); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// Wire builds the services over repos. Build calls it; tests call it with
// MemoryRepositories.
func (a *App) Wire(repos Repositories, locker lock.Locker, out sender.Sender) error {
	cfg := a.Config.Runner

	loc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return fmt.Errorf("default timezone: %w", err)
	}
	profiles, err := pacing.LoadProfiles(cfg.PacingProfiles)
	if err != nil {
		return err
	}

	a.Audiences = &service.AudienceService{Leads: repos.Leads, Audiences: repos.Audiences, Log: a.Log}
	a.Scoring = &service.ScoringService{Leads: repos.Leads, Log: a.Log}
	a.Campaigns = &service.CampaignService{
		CampaignRepo: repos.Campaigns,
		Audiences:    repos.Audiences,
		Enrollments:  repos.Enrollments,
		RecentLimit:  cfg.StatsRecentLimit,
		Log:          a.Log,
	}
	a.Sequences = &service.SequenceService{CampaignRepo: repos.Campaigns, Sequences: repos.Sequences, Log: a.Log}
	a.Enrollment = &service.EnrollmentService{
		CampaignRepo: repos.Campaigns,
		Audiences:    repos.Audiences,
		Sequences:    repos.Sequences,
		Enrollments:  repos.Enrollments,
		Resolver:     a.Audiences,
		Locker:       locker,
		LockTTL:      cfg.EnrollLockTTL,
		Policy:       service.ReenrollPolicy(cfg.ReenrollPolicy),
		Log:          a.Log,
	}
	a.Runner = &service.Runner{
		Leads:        repos.Leads,
		CampaignRepo: repos.Campaigns,
		Sequences:    repos.Sequences,
		Enrollments:  repos.Enrollments,
		Sender:       out,
		Pacing:       pacing.Policy{DefaultLocation: loc, Profiles: profiles},
		BatchSize:    cfg.BatchSize,
		Lease:        cfg.ClaimLease,
		Log:          a.Log,
	}
	a.OptOut = &service.OptOutService{Leads: repos.Leads, Enrollments: repos.Enrollments, Log: a.Log}
	a.Broadcasts = &service.BroadcastService{
		Broadcasts: repos.Broadcasts,
		Leads:      repos.Leads,
		Resolver:   a.Audiences,
		Sender:     out,
		Locker:     locker,
		Log:        a.Log,
	}
	return nil
}

// API returns the controllers for controller.NewRouter.
func (a *App) API() controller.API {
	return controller.API{
		Campaigns:  &controller.CampaignController{CampaignService: a.Campaigns, EnrollmentService: a.Enrollment, Log: a.Log},
		Stats:      handler.NewCampaignHandler(a.Campaigns, a.Log),
		Sequences:  &controller.SequenceController{SequenceService: a.Sequences, Log: a.Log},
		Audiences:  &controller.AudienceController{AudienceService: a.Audiences, Log: a.Log},
		Leads:      &controller.LeadController{OptOutService: a.OptOut, ScoringService: a.Scoring, Log: a.Log},
		Broadcasts: &controller.BroadcastController{BroadcastService: a.Broadcasts, Log: a.Log},
		Cycles:     &controller.CycleController{Runner: a.Runner, Log: a.Log},
		Log:        a.Log,
	}
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
