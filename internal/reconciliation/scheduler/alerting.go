package scheduler

import (
	"context"

	"github.com/viban-reconciler/internal/domain/alert"
	"github.com/viban-reconciler/internal/domain/audit"
)

// AlertOnFailure records a CRITICAL audit event and pages on-call for every
// failed run
func AlertOnFailure(auditSink audit.Sink, pager alert.Pager) FailureHook {
	return func(ctx context.Context, job string, err error) {
		auditSink.Record(ctx, audit.NewEvent(audit.TypeScheduler, audit.SeverityCritical, audit.ActionJobFailed, err.Error()).
			With("job", job))
		pager.PageCritical(ctx, alert.New(job, "Scheduled job "+job+" failed", map[string]any{
			"job":   job,
			"error": err.Error(),
		}))
	}
}
