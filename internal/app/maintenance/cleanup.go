package maintenance

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/backoffice/internal/services"
	"github.com/charlesng35/backoffice/pkg/logger"
	"github.com/charlesng35/backoffice/pkg/metrics"
)

const (
	defaultAuditRetentionDays = 90
	defaultGrantSpec          = "@hourly"
	defaultAuditSpec          = "@daily"

	jobOrphanGrants   = "orphan_grants"
	jobAuditRetention = "audit_retention"
)

// Cleaner coordinates background maintenance: removing grants that point at deleted
// users or menu nodes, and pruning audit entries past the retention window.
type Cleaner struct {
	grants    *services.AccessStore
	audit     *services.AuditService
	cron      *cron.Cron
	log       *zap.Logger
	retention int

	grantSchedule string
	auditSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithGrantSchedule overrides the cron specification for orphan grant cleanup.
func WithGrantSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.grantSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil dependency skips the corresponding job.
func NewCleaner(grants *services.AccessStore, audit *services.AuditService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		grants:        grants,
		audit:         audit,
		retention:     defaultAuditRetentionDays,
		grantSchedule: defaultGrantSpec,
		auditSchedule: defaultAuditSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the jobs and launches the scheduler when at least one is enabled.
func (c *Cleaner) Start() error {
	if c.grants == nil && c.audit == nil {
		return nil
	}

	if c.grants != nil {
		if _, err := c.cron.AddFunc(c.grantSchedule, func() {
			_ = c.purgeGrants(context.Background())
		}); err != nil {
			return err
		}
	}

	if c.audit != nil {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			_ = c.pruneAudit(context.Background())
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially and aggregates their failures.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.grants != nil {
		errs = multierr.Append(errs, c.purgeGrants(ctx))
	}
	if c.audit != nil {
		errs = multierr.Append(errs, c.pruneAudit(ctx))
	}
	return errs
}

func (c *Cleaner) purgeGrants(ctx context.Context) error {
	removed, err := c.grants.PurgeOrphanGrants(ctx)
	c.observe(jobOrphanGrants, err)
	if err != nil {
		c.log.Warn("orphan grant cleanup failed", zap.Error(err))
		return err
	}
	if removed > 0 {
		c.log.Info("orphan grants removed", zap.Int64("count", removed))
	}
	return nil
}

func (c *Cleaner) pruneAudit(ctx context.Context) error {
	removed, err := c.audit.CleanupOlderThan(ctx, c.retention)
	c.observe(jobAuditRetention, err)
	if err != nil {
		c.log.Warn("audit cleanup failed", zap.Error(err))
		return err
	}
	if removed > 0 {
		c.log.Info("audit entries pruned", zap.Int64("count", removed), zap.Int("retention_days", c.retention))
	}
	return nil
}

func (c *Cleaner) observe(job string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.MaintenanceRuns.WithLabelValues(job, result).Inc()
}
