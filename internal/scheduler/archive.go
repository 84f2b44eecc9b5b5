package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/matkalabs/matkad/internal/domain"
	"github.com/matkalabs/matkad/internal/schedule"
)

// ArchiveRunner moves old result history and audit rows to cold storage
// and then prunes them from the database.
type ArchiveRunner struct {
	archiver      domain.Archiver
	results       domain.ResultHistoryStore
	audit         domain.AuditStore
	retentionDays int
	clock         schedule.Clock
	logger        *slog.Logger
}

// NewArchiveRunner creates an ArchiveRunner.
func NewArchiveRunner(
	archiver domain.Archiver,
	results domain.ResultHistoryStore,
	audit domain.AuditStore,
	retentionDays int,
	clock schedule.Clock,
	logger *slog.Logger,
) *ArchiveRunner {
	return &ArchiveRunner{
		archiver:      archiver,
		results:       results,
		audit:         audit,
		retentionDays: retentionDays,
		clock:         clock,
		logger:        logger,
	}
}

// Run executes a single archive run: upload everything older than the
// retention cutoff, then delete the uploaded rows. Deletion only happens
// after the corresponding upload succeeded.
func (a *ArchiveRunner) Run(ctx context.Context) error {
	cutoff := a.clock.Now().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	resultsArchived, err := a.archiver.ArchiveResults(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving results before %v: %w", cutoff, err)
	}
	if resultsArchived > 0 {
		deleted, err := a.results.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pruning archived results: %w", err)
		}
		a.logger.Info("archived result history",
			slog.Int64("archived", resultsArchived),
			slog.Int64("pruned", deleted),
		)
	}

	auditArchived, err := a.archiver.ArchiveAudit(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving audit log before %v: %w", cutoff, err)
	}
	if auditArchived > 0 {
		deleted, err := a.audit.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pruning archived audit log: %w", err)
		}
		a.logger.Info("archived audit log",
			slog.Int64("archived", auditArchived),
			slog.Int64("pruned", deleted),
		)
	}

	a.logger.Info("archive run complete",
		slog.Int64("results_archived", resultsArchived),
		slog.Int64("audit_archived", auditArchived),
	)
	return nil
}

// RunCron runs the archiver on a cron schedule until the context is
// cancelled.
func (a *ArchiveRunner) RunCron(ctx context.Context, cronExpr string) error {
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, a.clock.Now())
		if err != nil {
			return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
		}

		waitDuration := next.Sub(a.clock.Now())
		a.logger.Info("archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", waitDuration),
		)

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Compile-time interface check.
var _ ArchiveJob = (*ArchiveRunner)(nil)
