package main

import (
	"context"
	"flag"
	"time"

	"github.com/flexprice/dunning/internal/arena"
	"github.com/flexprice/dunning/internal/cache"
	"github.com/flexprice/dunning/internal/config"
	"github.com/flexprice/dunning/internal/domain/approval"
	"github.com/flexprice/dunning/internal/logger"
	"github.com/flexprice/dunning/internal/notification"
	"github.com/flexprice/dunning/internal/provider"
	"github.com/flexprice/dunning/internal/pubsub"
	kafkaPubSub "github.com/flexprice/dunning/internal/pubsub/kafka"
	memoryPubSub "github.com/flexprice/dunning/internal/pubsub/memory"
	pubsubRouter "github.com/flexprice/dunning/internal/pubsub/router"
	"github.com/flexprice/dunning/internal/repository"
	"github.com/flexprice/dunning/internal/sentry"
	"github.com/flexprice/dunning/internal/service"
	"github.com/flexprice/dunning/internal/types"
	"go.uber.org/fx"
)

// cliFlags are the per-invocation options of the cycle mode
type cliFlags struct {
	DryRun   bool
	Tenant   string
	Limit    int
	Approve  string
	Reject   string
	Approver string
	Comment  string
}

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	flags := &cliFlags{}
	flag.BoolVar(&flags.DryRun, "dry-run", false, "Decide and report without sending or recording anything")
	flag.StringVar(&flags.Tenant, "tenant", "", "Run a single tenant instead of dunning.tenant_ids")
	flag.IntVar(&flags.Limit, "limit", 0, "Maximum invoices loaded per tenant (0 uses dunning.invoice_limit)")
	flag.StringVar(&flags.Approve, "approve", "", "Approve the pending dunning with this idempotency key (requires -tenant)")
	flag.StringVar(&flags.Reject, "reject", "", "Reject the pending dunning with this idempotency key (requires -tenant)")
	flag.StringVar(&flags.Approver, "approver", "", "Name of the approving person")
	flag.StringVar(&flags.Comment, "comment", "", "Approval comment")
	flag.Parse()

	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Supply(flags),
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			cache.NewInMemoryCache,

			// Snapshot store and tenant arena
			repository.ProvideSnapshotRepository,
			arena.New,

			// Invoice source
			provider.NewFixtureProvider,

			// PubSub
			providePubSub,
			provideSender,
			provideRouter,
		),
		sentry.Module(),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,
			service.NewPolicyService,
			service.NewRateLimiterService,
			service.NewDecisionEngine,
			service.NewApprovalService,
			service.NewDispatcherService,
			service.NewBounceService,
			service.NewCycleService,
			service.NewBounceConsumer,
		),
		fx.Invoke(start),
	)

	app := fx.New(opts...)
	app.Run()
}

func providePubSub(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (pubsub.PubSub, error) {
	var (
		ps  pubsub.PubSub
		err error
	)
	switch cfg.PubSub.Type {
	case types.KafkaPubSub:
		ps, err = kafkaPubSub.NewPubSub(cfg, log)
		if err != nil {
			return nil, err
		}
	default:
		ps = memoryPubSub.NewPubSub(log)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing pubsub")
			return ps.Close()
		},
	})
	return ps, nil
}

func provideSender(ps pubsub.PubSub, cfg *config.Configuration, log *logger.Logger) notification.Sender {
	return notification.NewPubSubSender(ps, cfg, log)
}

func provideRouter(cfg *config.Configuration, log *logger.Logger, sentrySvc *sentry.Service, ps pubsub.PubSub) (*pubsubRouter.Router, error) {
	return pubsubRouter.NewRouter(cfg, log, sentrySvc, ps)
}

func start(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Configuration,
	flags *cliFlags,
	cycle service.CycleService,
	approvals service.ApprovalService,
	policies service.PolicyService,
	params service.ServiceParams,
	consumer *service.BounceConsumer,
	router *pubsubRouter.Router,
	ps pubsub.PubSub,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeCycle
	}

	switch mode {
	case types.ModeCycle:
		if flags.Approve != "" || flags.Reject != "" {
			startDecision(lc, shutdowner, params, approvals, flags, log)
			return
		}
		startCycle(lc, shutdowner, cfg, cycle, flags, log)
	case types.ModeScheduler:
		startScheduler(lc, cfg, cycle, policies, flags, log)
	case types.ModeConsumer:
		startMessageRouter(lc, router, consumer, ps, log)
	case types.ModeLocal:
		startMessageRouter(lc, router, consumer, ps, log)
		startScheduler(lc, cfg, cycle, policies, flags, log)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func runOptions(cfg *config.Configuration, flags *cliFlags) service.RunOptions {
	return service.RunOptions{
		DryRun:    flags.DryRun,
		Limit:     flags.Limit,
		Requester: cfg.Dunning.Requester,
	}
}

func runOnce(ctx context.Context, cfg *config.Configuration, cycle service.CycleService, flags *cliFlags, log *logger.Logger) error {
	opts := runOptions(cfg, flags)

	var (
		reports []*service.RunReport
		err     error
	)
	if flags.Tenant != "" {
		var report *service.RunReport
		report, err = cycle.Run(ctx, flags.Tenant, opts)
		if report != nil {
			reports = append(reports, report)
		}
	} else {
		reports, err = cycle.RunAll(ctx, opts)
	}

	for _, report := range reports {
		log.Infow("dunning run report",
			"tenant_id", report.TenantID,
			"run_id", report.RunID,
			"dry_run", report.DryRun,
			"totals", report.Totals,
			"dispatched", report.Dispatched,
			"would_dispatch", report.WouldDispatch,
			"pending_approvals", report.PendingApprovals,
			"suppressed", report.Suppressed,
			"errors", len(report.Errors),
			"error", report.Error,
		)
	}
	return err
}

func startCycle(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Configuration,
	cycle service.CycleService,
	flags *cliFlags,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				code := 0
				if err := runOnce(context.Background(), cfg, cycle, flags, log); err != nil {
					log.Errorw("dunning cycle failed", "error", err)
					code = 1
				}
				if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					log.Errorw("failed to shut down", "error", err)
				}
			}()
			return nil
		},
	})
}

func startDecision(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	params service.ServiceParams,
	approvals service.ApprovalService,
	flags *cliFlags,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				code := 0
				err := params.Arena.Run(context.Background(), flags.Tenant, func(ctx context.Context, t *arena.Tenant) error {
					var (
						record *approval.Record
						err    error
					)
					if flags.Approve != "" {
						record, err = approvals.Approve(ctx, t, flags.Approve, flags.Approver, flags.Comment)
					} else {
						record, err = approvals.Reject(ctx, t, flags.Reject, flags.Approver, flags.Comment)
					}
					if err != nil {
						return err
					}
					log.Infow("approval decision recorded",
						"tenant_id", t.ID,
						"idempotency_key", record.IdempotencyKey,
						"status", record.Status,
					)
					return nil
				})
				if err != nil {
					log.Errorw("approval decision failed", "error", err)
					code = 1
				}
				if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					log.Errorw("failed to shut down", "error", err)
				}
			}()
			return nil
		},
	})
}

func startScheduler(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	cycle service.CycleService,
	policies service.PolicyService,
	flags *cliFlags,
	log *logger.Logger,
) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Infow("starting dunning scheduler", "interval", cfg.Scheduler.Interval)
			go func() {
				defer close(done)
				ticker := time.NewTicker(cfg.Scheduler.Interval)
				defer ticker.Stop()

				for {
					if err := runOnce(ctx, cfg, cycle, flags, log); err != nil {
						log.Errorw("scheduled dunning cycle failed", "error", err)
					}
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						for _, tenantID := range cfg.Dunning.TenantIDs {
							policies.InvalidatePolicy(ctx, tenantID)
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			log.Info("stopping dunning scheduler")
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	consumer *service.BounceConsumer,
	subscriber pubsub.Subscriber,
	log *logger.Logger,
) {
	consumer.RegisterHandler(router, subscriber)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting message router")
			go func() {
				if err := router.Run(context.Background()); err != nil {
					log.Errorw("message router stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down message router")
			return router.Close()
		},
	})
}
