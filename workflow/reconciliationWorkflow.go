package workflow

import (
	"context"

	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ProcessReconciliationWorkflow checks the stock projections and optionally rebuilds them from the movement log.
func ProcessReconciliationWorkflow(ctx context.Context, logger *logrus.Logger, fix bool) (*models.ReconciliationReport, error) {
	var (
		report *models.ReconciliationReport
		err    error
	)
	if fix {
		report, err = models.RebuildProjections(ctx)
	} else {
		report, err = models.ReconcileProjections(ctx)
	}
	if err != nil {
		config.LogError(logger, "ReconciliationWorkflow.go", "ProcessReconciliationWorkflow", "Reconciling projections", fix, err)
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"field":          "ProcessReconciliationWorkflow",
		"warehouse_rows": report.WarehouseRows,
		"customer_rows":  report.CustomerRows,
		"drifts":         len(report.Drifts),
		"fix":            fix,
	}).Info("reconciliation finished")
	return report, nil
}

// StartReconciliationScheduler runs the drift check on schedule until ctx is done.
// An empty schedule returns a nil scheduler.
func StartReconciliationScheduler(ctx context.Context, logger *logrus.Logger, schedule string) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		_, _ = ProcessReconciliationWorkflow(ctx, logger, false)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}
