package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"fleet-platform/internal/audit"
	"fleet-platform/internal/config"
	"fleet-platform/internal/notify"
	"fleet-platform/internal/reporting"
	"fleet-platform/internal/store"
	"fleet-platform/internal/workflow"
	"fleet-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// deps are the process-wide collaborators, built once from config.
type deps struct {
	db  *sql.DB
	rdb *redis.Client

	store   workflow.Store
	fanout  *store.Fanout
	engine  *workflow.Engine
	reports *reporting.Service
	audit   *audit.Service
}

func (d *deps) Close() {
	if d.rdb != nil {
		_ = d.rdb.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}

func buildDeps(ctx context.Context, cfg config.Config, log *slog.Logger) (*deps, error) {
	d := &deps{}

	if cfg.Workflow.StoreBackend == config.StorePostgres {
		db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		d.db = db
	}
	if cfg.NeedsRedis() {
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		d.rdb = rdb
	}

	feed := workflow.NewFeed()
	var auditRepo audit.Repository = audit.NewMemoryRepo()

	switch cfg.Workflow.StoreBackend {
	case config.StorePostgres:
		pg := store.NewPostgresStore(d.db, feed, store.NewRedisPublisher(d.rdb, store.DefaultChannel), log)
		if err := pg.EnsureSchema(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("schema: %w", err)
		}
		opsRepo := audit.NewPostgresRepo(d.db)
		if err := opsRepo.EnsureSchema(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("ops schema: %w", err)
		}
		auditRepo = opsRepo
		d.store = pg
		d.fanout = store.NewFanout(d.rdb, feed, store.DefaultChannel, log)
	case config.StoreRedis:
		d.store = store.NewRedisStore(d.rdb, feed, store.DefaultChannel, log)
		d.fanout = store.NewFanout(d.rdb, feed, store.DefaultChannel, log)
	default:
		d.store = workflow.NewMemoryStore()
	}

	var notifier workflow.Notifier = notify.NewLog(log)
	if cfg.Notify.Backend == "redis" {
		notifier = notify.NewRedis(d.rdb)
	}

	d.audit = audit.NewService(auditRepo)
	d.engine = workflow.NewEngine(d.store, workflow.Options{
		Policy:          workflow.Policy{AllowAdminAudit: cfg.Workflow.AllowAdminAudit},
		Notifier:        notifier,
		Ops:             workflow.AuditAdapter{Audit: d.audit},
		Logger:          log,
		ChatGrace:       cfg.Workflow.ChatGrace,
		DefaultCurrency: cfg.Workflow.DefaultCurrency,
	})
	d.reports = reporting.NewService(d.store)
	return d, nil
}
