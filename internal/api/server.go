package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/betrace-hq/betrace-sub002/internal/aggregator"
	"github.com/betrace-hq/betrace-sub002/internal/api/middleware"
	"github.com/betrace-hq/betrace-sub002/internal/core"
	"github.com/betrace-hq/betrace-sub002/internal/evidence"
	"github.com/betrace-hq/betrace-sub002/internal/keycache"
	"github.com/betrace-hq/betrace-sub002/internal/ledger"
	"github.com/betrace-hq/betrace-sub002/internal/pipeline"
	"github.com/betrace-hq/betrace-sub002/internal/signals"
	"github.com/betrace-hq/betrace-sub002/internal/tasks"
)

type Server struct {
	aggregator  *aggregator.Aggregator
	pipeline    *pipeline.Pipeline
	signals     *signals.Service
	evidence    *evidence.Service
	ledger      core.Ledger
	recorder    *ledger.Recorder
	actor       core.AccountResolver
	keys        *keycache.Cache
	taskManager *tasks.Manager
}

func NewServer(
	agg *aggregator.Aggregator,
	pipe *pipeline.Pipeline,
	sigSvc *signals.Service,
	evSvc *evidence.Service,
	led core.Ledger,
	recorder *ledger.Recorder,
	actor core.AccountResolver,
	keys *keycache.Cache,
	taskManager *tasks.Manager,
) *Server {
	return &Server{
		aggregator:  agg,
		pipeline:    pipe,
		signals:     sigSvc,
		evidence:    evSvc,
		ledger:      led,
		recorder:    recorder,
		actor:       actor,
		keys:        keys,
		taskManager: taskManager,
	}
}

func (s *Server) Routes(adminSigningKey []byte) http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)
	mux.Handle("GET "+MetricsRoute, promhttp.Handler())

	// ingest route
	mux.HandleFunc("POST "+IngestSpansRoute, s.handleIngestSpans)

	// signal routes
	mux.HandleFunc("GET "+ListSignalsRoute, s.handleListSignals)
	mux.HandleFunc("GET "+GetSignalRoute, s.handleGetSignal)
	mux.HandleFunc("POST "+SignalStatusRoute, s.handleSignalStatus)

	// evidence routes
	mux.HandleFunc("POST "+GenerateEvidenceRoute, s.handleGenerateEvidence)
	mux.HandleFunc("GET "+ListEvidenceRoute, s.handleListEvidence)
	mux.HandleFunc("POST "+VerifyEvidenceRoute, s.handleVerifyEvidence)

	// task routes
	mux.HandleFunc("GET "+ListTasksRoute, s.handleListTasks)
	mux.HandleFunc("POST "+TriggerTaskRoute, s.handleTriggerTask)
	mux.HandleFunc("GET "+LogsForTaskRoute, s.handleLogsForTask)

	// admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET "+LedgerRoute, s.handleAdminLedger)
	adminMux.HandleFunc("POST "+FlushLedgerRoute, s.handleAdminFlush)
	adminMux.HandleFunc("POST "+RotateKeyRoute, s.handleAdminRotateKey)
	mux.Handle("/v1/admin/", middleware.AdminAuth(adminSigningKey, s.auditAuthDecision)(adminMux))

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				middleware.TenantMiddleware(
					mux))))
}
