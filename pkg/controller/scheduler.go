package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/lukaszraczylo/ecrsync/pkg/filter"
	"github.com/lukaszraczylo/ecrsync/pkg/metrics"
)

// NamespaceLister provides the set of namespaces that opted in to the
// managed pull secret.
// This interface allows for testing with mocks.
type NamespaceLister interface {
	ListNamespaces(ctx context.Context) ([]string, error)
}

// TokenSource provides registry tokens.
// This interface allows for testing with mocks.
type TokenSource interface {
	GetToken(ctx context.Context, useCache bool) (string, error)
}

// SecretReconciler converges the pull secret in a single namespace.
// This interface allows for testing with mocks.
type SecretReconciler interface {
	Reconcile(ctx context.Context, namespace, token string) error
}

// Scheduler runs full reconciliation sweeps: once at startup and then on a
// cron schedule. Every sweep forces a fresh token so expired credentials
// cannot outlive a full cycle.
type Scheduler struct {
	lister     NamespaceLister
	tokens     TokenSource
	reconciler SecretReconciler
	filter     *filter.NamespaceFilter
	schedule   cron.Schedule
}

// NewScheduler creates a Scheduler from a standard cron expression.
func NewScheduler(lister NamespaceLister, tokens TokenSource, reconciler SecretReconciler, nsFilter *filter.NamespaceFilter, cronSchedule string) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(cronSchedule)
	if err != nil {
		return nil, fmt.Errorf("parsing cron schedule %q: %w", cronSchedule, err)
	}

	return &Scheduler{
		lister:     lister,
		tokens:     tokens,
		reconciler: reconciler,
		filter:     nsFilter,
		schedule:   schedule,
	}, nil
}

// NeedLeaderElection ensures only the elected leader runs sweeps.
func (s *Scheduler) NeedLeaderElection() bool {
	return true
}

// Start runs the startup sweep and then sweeps on the cron schedule until
// the context is cancelled. It implements manager.Runnable.
func (s *Scheduler) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("scheduler")

	logger.Info("running startup sweep")
	if err := s.Sweep(ctx); err != nil {
		logger.Error(err, "startup sweep failed")
	}

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("scheduler stopped due to context cancellation")
			return nil
		case <-timer.C:
			if err := s.Sweep(ctx); err != nil {
				logger.Error(err, "scheduled sweep failed")
			}
		}
	}
}

// Sweep reconciles the pull secret across every opted-in namespace. The
// namespace list and a fresh token are fetched up front; failure of either
// aborts the whole sweep. Per-namespace failures are logged and counted but
// do not stop the remaining namespaces.
func (s *Scheduler) Sweep(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("scheduler")

	namespaces, err := s.lister.ListNamespaces(ctx)
	if err != nil {
		metrics.SweepErrors.Inc()
		return fmt.Errorf("listing namespaces: %w", err)
	}

	token, err := s.tokens.GetToken(ctx, false)
	if err != nil {
		metrics.SweepErrors.Inc()
		return fmt.Errorf("refreshing registry token: %w", err)
	}

	var reconciledCount, errorCount, skippedCount int
	for _, namespace := range namespaces {
		if !s.filter.IsAllowed(namespace) {
			skippedCount++
			continue
		}

		if err := s.reconciler.Reconcile(ctx, namespace, token); err != nil {
			logger.Error(err, "failed to reconcile namespace", "namespace", namespace)
			metrics.NamespaceSyncs.WithLabelValues("error").Inc()
			errorCount++
			continue
		}

		metrics.NamespaceSyncs.WithLabelValues("ok").Inc()
		reconciledCount++
	}

	metrics.Sweeps.Inc()
	logger.Info("sweep complete",
		"reconciled", reconciledCount,
		"errors", errorCount,
		"skipped", skippedCount,
		"total", len(namespaces))

	return nil
}
