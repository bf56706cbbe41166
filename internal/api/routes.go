package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/about"
	MetricsRoute     = "/metrics"

	IngestSpansRoute = "/v1/spans"

	SignalParent      = "/v1/signals"
	ListSignalsRoute  = SignalParent
	GetSignalRoute    = SignalParent + "/{id}"
	SignalStatusRoute = SignalParent + "/{id}/status"

	EvidenceParent        = "/v1/evidence"
	GenerateEvidenceRoute = EvidenceParent
	ListEvidenceRoute     = EvidenceParent
	VerifyEvidenceRoute   = EvidenceParent + "/verify"

	AdminParent      = "/v1/admin/"
	LedgerRoute      = AdminParent + "ledger"
	RotateKeyRoute   = AdminParent + "keys/rotate"
	FlushLedgerRoute = AdminParent + "ledger/flush"

	TaskParent       = "/v1/tasks/"
	ListTasksRoute   = TaskParent
	TriggerTaskRoute = TaskParent + "{name}/trigger"
	LogsForTaskRoute = TaskParent + "{name}/logs"
)
