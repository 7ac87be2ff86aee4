package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"telecom-inbound/internal/audit"
	"telecom-inbound/internal/auth"
	"telecom-inbound/internal/calls"
	"telecom-inbound/internal/classify"
	"telecom-inbound/internal/config"
	"telecom-inbound/internal/dialogue"
	"telecom-inbound/internal/httpapi"
	"telecom-inbound/internal/idempotency"
	"telecom-inbound/internal/inbound"
	"telecom-inbound/internal/reporting"
	"telecom-inbound/internal/routing"
	"telecom-inbound/internal/telephony"
	"telecom-inbound/internal/trust"
	"telecom-inbound/pkg/utils"
)

// app holds the wired services. Nothing here is global.
type app struct {
	cfg config.Config
	log *slog.Logger
	db  *sql.DB
	rdb *redis.Client

	machine *dialogue.Machine
	webhook *telephony.WebhookHandler
	api     httpapi.Handlers
	auth    *auth.Manager
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func openPostgres(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxConns: cfg.DB.MaxConns})
	if err != nil {
		return nil, fmt.Errorf("postgres init: %w", err)
	}
	return db, nil
}

func buildApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	policy, err := config.LoadPolicy(cfg.Routing.PolicyFile)
	if err != nil {
		return nil, err
	}

	if a.auth, err = auth.NewManager(cfg.Auth); err != nil {
		return nil, fmt.Errorf("auth init: %w", err)
	}
	if a.db, err = openPostgres(ctx, cfg); err != nil {
		return nil, err
	}
	if a.rdb, err = utils.OpenRedis(ctx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}); err != nil {
		a.Close()
		return nil, fmt.Errorf("redis init: %w", err)
	}

	auditSvc := audit.NewService(audit.NewPostgresRepo(a.db))
	inboundStore := inbound.NewPostgresStore(a.db)
	callStore := calls.NewPostgresStore(a.db)
	callSvc := calls.NewService(callStore, auditSvc)
	a.machine = dialogue.NewMachine(dialogue.NewPostgresStore(a.db), auditSvc)

	oracle := classify.NewCachedOracle(
		classify.NewHTTPOracle(cfg.Oracle.URL, cfg.Oracle.APIKey, cfg.Oracle.Model, cfg.Oracle.Timeout),
		a.rdb, cfg.Oracle.CacheTTL,
	)
	vocab := classify.Vocabulary{
		Greetings:        policy.Vocabulary.Greetings,
		Acknowledgements: policy.Vocabulary.Acknowledgements,
		Urgency:          policy.Vocabulary.Urgency,
		Emergency:        policy.Vocabulary.Emergency,
		Scheduling:       policy.Vocabulary.Scheduling,
	}
	classifier := classify.NewClassifier(oracle, classify.NewPolicy(vocab, policy.FirstContactSpamThreshold), cfg.Oracle.Timeout)

	router := inbound.NewRouter(inbound.Deps{
		Accounts:         inboundStore,
		Events:           inboundStore,
		Conversations:    inboundStore,
		Trust:            trust.NewResolver(trust.NewPostgresDirectory(a.db)),
		Classifier:       classifier,
		Rules:            routing.NewEngine(routing.NewPostgresStore(a.db)),
		Calls:            callSvc,
		Dialogue:         a.machine,
		Claims:           idempotency.NewRedisClaimer(a.rdb, cfg.Routing.DedupTTL),
		Audit:            auditSvc,
		DefaultAccountID: cfg.Routing.DefaultAccountID,
	})

	a.webhook = telephony.NewWebhookHandler(router, callSvc, cfg.App.PublicBaseURL, telephony.Prompts{
		Screen:    policy.Prompts.Screen,
		Voicemail: policy.Prompts.Voicemail,
		Rejected:  policy.Prompts.Rejected,
	})
	a.api = httpapi.Handlers{
		Auth:      a.auth,
		Dialogue:  a.machine,
		Router:    router,
		Reporting: reporting.NewService(reporting.NewPostgresRepo(a.db)),
		Audit:     auditSvc,
	}
	return a, nil
}
