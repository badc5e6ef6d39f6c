// Package pipeline runs the scheduled journal maintenance jobs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// Archiver moves journal rows past the retention window to cold storage.
type Archiver struct {
	archiver      domain.Archiver
	retentionDays int
	now           func() time.Time
	logger        *slog.Logger
}

// NewArchiver creates an Archiver keeping retentionDays of history hot.
func NewArchiver(archiver domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		archiver:      archiver,
		retentionDays: retentionDays,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Cutoff returns the oldest timestamp that stays in the primary store.
func (a *Archiver) Cutoff() time.Time {
	return a.now().UTC().AddDate(0, 0, -a.retentionDays)
}

// Run archives opportunities and executions once. Both are attempted even if
// the first fails.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := a.Cutoff()
	a.logger.InfoContext(ctx, "archiver: run started",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	opps, oppErr := a.archiver.ArchiveOpportunities(ctx, cutoff)
	if oppErr != nil {
		oppErr = fmt.Errorf("archive opportunities: %w", oppErr)
	}
	execs, execErr := a.archiver.ArchiveExecutions(ctx, cutoff)
	if execErr != nil {
		execErr = fmt.Errorf("archive executions: %w", execErr)
	}

	if err := errors.Join(oppErr, execErr); err != nil {
		return fmt.Errorf("archiver: %w", err)
	}
	a.logger.InfoContext(ctx, "archiver: run complete",
		slog.Int64("opportunities", opps),
		slog.Int64("executions", execs),
	)
	return nil
}

// RunCron runs the archiver on a standard five-field cron schedule (UTC)
// until ctx ends. Overlapping runs are skipped.
func (a *Archiver) RunCron(ctx context.Context, spec string) error {
	logger := cronLogger{a.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, func() {
		if err := a.Run(ctx); err != nil {
			a.logger.ErrorContext(ctx, "archiver: run failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("archiver: invalid cron %q: %w", spec, err)
	}

	c.Start()
	a.logger.InfoContext(ctx, "archiver: cron started", slog.String("cron", spec))

	<-ctx.Done()
	<-c.Stop().Done()
	a.logger.Info("archiver: cron stopped")
	return nil
}

// ValidateCron reports whether spec parses as a five-field cron expression.
func ValidateCron(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("archiver: cron "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("archiver: cron "+msg, append(keysAndValues, "error", err.Error())...)
}
