package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/lukaszraczylo/ecrsync/pkg/constants"
	"github.com/lukaszraczylo/ecrsync/pkg/filter"
	"github.com/lukaszraczylo/ecrsync/pkg/metrics"
)

// NamespaceWatcher seeds the pull secret into namespaces as soon as they
// appear with the opt-in label. The watch starts without a resource version,
// so every (re)start replays the current set of matching namespaces as ADDED
// events; reconciliation is idempotent, so replays converge.
type NamespaceWatcher struct {
	clientset  kubernetes.Interface
	selector   string
	tokens     TokenSource
	reconciler SecretReconciler
	filter     *filter.NamespaceFilter
	retryDelay time.Duration
}

// NewNamespaceWatcher creates a new NamespaceWatcher.
func NewNamespaceWatcher(clientset kubernetes.Interface, selector string, tokens TokenSource, reconciler SecretReconciler, nsFilter *filter.NamespaceFilter) *NamespaceWatcher {
	return &NamespaceWatcher{
		clientset:  clientset,
		selector:   selector,
		tokens:     tokens,
		reconciler: reconciler,
		filter:     nsFilter,
		retryDelay: constants.WatchRetryDelay,
	}
}

// NeedLeaderElection ensures only the elected leader reacts to watch events.
func (w *NamespaceWatcher) NeedLeaderElection() bool {
	return true
}

// Start watches labeled namespaces until the context is cancelled,
// re-establishing the watch whenever the stream ends. It implements
// manager.Runnable.
func (w *NamespaceWatcher) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("namespace-watcher")

	for {
		if ctx.Err() != nil {
			return nil
		}

		stream, err := w.clientset.CoreV1().Namespaces().Watch(ctx, metav1.ListOptions{
			LabelSelector: w.selector,
		})
		if err != nil {
			logger.Error(err, "failed to start namespace watch", "retryIn", w.retryDelay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.retryDelay):
			}
			continue
		}

		logger.V(1).Info("namespace watch established", "selector", w.selector)
		w.consume(ctx, logger, stream)

		if ctx.Err() != nil {
			return nil
		}

		metrics.WatchRestarts.Inc()
		logger.Info("namespace watch ended, restarting")
	}
}

// consume drains a single watch stream until it closes or the context is
// cancelled.
func (w *NamespaceWatcher) consume(ctx context.Context, logger logr.Logger, stream watch.Interface) {
	defer stream.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-stream.ResultChan():
			if !ok {
				return
			}

			if event.Type == watch.Error {
				logger.Error(apierrors.FromObject(event.Object), "namespace watch stream error")
				return
			}

			if event.Type != watch.Added {
				continue
			}

			namespace, ok := event.Object.(*corev1.Namespace)
			if !ok {
				logger.Info("ignoring unexpected object in watch event", "type", fmt.Sprintf("%T", event.Object))
				continue
			}

			w.handleAdded(ctx, logger, namespace.Name)
		}
	}
}

// handleAdded seeds a newly labeled namespace with the pull secret using the
// cached token. Failures are logged and left for the next sweep.
func (w *NamespaceWatcher) handleAdded(ctx context.Context, logger logr.Logger, namespace string) {
	logger = logger.WithValues("namespace", namespace)

	if !w.filter.IsAllowed(namespace) {
		logger.V(1).Info("namespace excluded by filter")
		return
	}

	token, err := w.tokens.GetToken(ctx, true)
	if err != nil {
		logger.Error(err, "failed to obtain registry token")
		metrics.NamespaceSyncs.WithLabelValues("error").Inc()
		return
	}

	if err := w.reconciler.Reconcile(ctx, namespace, token); err != nil {
		logger.Error(err, "failed to reconcile namespace")
		metrics.NamespaceSyncs.WithLabelValues("error").Inc()
		return
	}

	metrics.NamespaceSyncs.WithLabelValues("ok").Inc()
	logger.Info("namespace seeded with pull secret")
}
