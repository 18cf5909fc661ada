package interceptor

import (
	"context"
	"log/slog"

	"cedarguard/internal/audit"
	"cedarguard/internal/logger"
	"cedarguard/internal/session"
)

// Audit is an interceptor that persists one structured decision record
// per check through an audit.Logger. Writes
// are buffered and fired from a background goroutine so a slow or
// failing audit sink never holds up the authorization path; when the
// buffer is full the incoming record is dropped rather than blocking.
type Audit struct {
	logger *audit.Logger
	log    *slog.Logger
	ch     chan auditJob
}

type auditJob struct {
	ctx      context.Context
	check    session.Single
	result   session.CheckResult
	checkErr error
}

// NewAudit builds an Audit interceptor backed by logger, with queueSize
// buffered pending writes.
func NewAudit(auditLogger *audit.Logger, queueSize int) *Audit {
	if queueSize <= 0 {
		queueSize = 256
	}
	a := &Audit{
		logger: auditLogger,
		log:    logger.WithComponent("interceptor.audit"),
		ch:     make(chan auditJob, queueSize),
	}
	go a.drain()
	return a
}

// Before is a no-op: the audit record is built from the final result.
func (a *Audit) Before(ctx context.Context, _ session.Single) context.Context { return ctx }

// After enqueues a decision record for the check that just ran. It never
// blocks: under sustained overflow it drops the record and logs that it
// did so, rather than applying backpressure to the authorization path.
func (a *Audit) After(ctx context.Context, check session.Single, result session.CheckResult, err error) {
	job := auditJob{ctx: context.WithoutCancel(ctx), check: check, result: result, checkErr: err}
	select {
	case a.ch <- job:
	default:
		a.log.Warn("audit queue full, dropping decision record", "action", check.Action.String())
	}
}

func (a *Audit) drain() {
	for job := range a.ch {
		a.write(job)
	}
}

func (a *Audit) write(job auditJob) {
	eventType := audit.EventAccessAllowed
	result := "allow"
	switch {
	case job.checkErr != nil && job.result.Decision != session.Allow && len(job.result.Errors) > 0:
		eventType = audit.EventAccessFailed
		result = "error"
	case job.result.Decision != session.Allow:
		eventType = audit.EventAccessDenied
		result = "deny"
	}

	actor := audit.Actor{Type: job.result.Principal.Type, ID: job.result.Principal.ID}
	resource := audit.Resource{Type: job.result.Resource.Type, ID: job.result.Resource.ID}

	details := map[string]interface{}{
		"reasons": job.result.Reasons,
	}
	if len(job.result.Errors) > 0 {
		details["errors"] = job.result.Errors
	}

	if err := a.logger.Log(job.ctx, eventType, actor, resource, job.result.Action.String(), result, details); err != nil {
		a.log.Error("failed to persist audit record", "error", err)
	}
}
