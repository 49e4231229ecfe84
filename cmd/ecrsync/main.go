// Package main is the entry point for the ecrsync controller.
package main

import (
	"flag"
	"os"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/lukaszraczylo/ecrsync/pkg/config"
	"github.com/lukaszraczylo/ecrsync/pkg/constants"
	"github.com/lukaszraczylo/ecrsync/pkg/controller"
	"github.com/lukaszraczylo/ecrsync/pkg/filter"
	"github.com/lukaszraczylo/ecrsync/pkg/token"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
}

func main() {
	var (
		metricsAddr          string
		probeAddr            string
		enableLeaderElection bool
		leaderElectionID     string
		configFile           string
		excludedNamespaces   string
	)

	flag.StringVar(&metricsAddr, "metrics-bind-address", ":8080", "The address the metric endpoint binds to.")
	flag.StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	flag.BoolVar(&enableLeaderElection, "leader-elect", false,
		"Enable leader election for controller manager. "+
			"Enabling this will ensure there is only one active controller manager.")
	flag.StringVar(&leaderElectionID, "leader-election-id", constants.LeaderElectionID,
		"The name of the leader election lease.")
	flag.StringVar(&configFile, "config", "",
		"Path to a YAML config file. Environment variables override file values.")
	flag.StringVar(&excludedNamespaces, "excluded-namespaces", "",
		"Comma-separated list of namespaces or glob patterns to exclude "+
			"(in addition to configured exclusions).")

	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	cfg := config.Default()
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			setupLog.Error(err, "failed to load config file")
			os.Exit(1)
		}
	}
	cfg.LoadEnv()
	if excludedNamespaces != "" {
		cfg.ExcludedNamespaces = append(cfg.ExcludedNamespaces, filter.ParseNamespaceList(excludedNamespaces)...)
	}
	cfg.LeaderElection = config.LeaderElectionConfig{
		Enabled:           enableLeaderElection,
		ResourceName:      leaderElectionID,
		ResourceNamespace: "", // Will be auto-detected
		LeaseDuration:     15 * time.Second,
		RenewDeadline:     10 * time.Second,
		RetryPeriod:       2 * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		setupLog.Error(err, "invalid configuration")
		os.Exit(1)
	}

	setupLog.Info("starting ecrsync controller",
		"registry", cfg.DockerRegistry,
		"secret", cfg.SecretName,
		"selector", cfg.LabelSelector(),
		"schedule", cfg.CronSchedule,
	)

	restConfig := ctrl.GetConfigOrDie()

	mgr, err := ctrl.NewManager(restConfig, ctrl.Options{
		Scheme: scheme,
		Metrics: metricsserver.Options{
			BindAddress: metricsAddr,
		},
		HealthProbeBindAddress: probeAddr,
		LeaderElection:         cfg.LeaderElection.Enabled,
		LeaderElectionID:       cfg.LeaderElection.ResourceName,
		LeaseDuration:          &cfg.LeaderElection.LeaseDuration,
		RenewDeadline:          &cfg.LeaderElection.RenewDeadline,
		RetryPeriod:            &cfg.LeaderElection.RetryPeriod,
	})
	if err != nil {
		setupLog.Error(err, "unable to create manager")
		os.Exit(1)
	}

	// Set up signal handler context for graceful shutdown
	signalCtx := ctrl.SetupSignalHandler()

	provider, err := token.NewECRProvider(signalCtx)
	if err != nil {
		setupLog.Error(err, "unable to create registry token provider")
		os.Exit(1)
	}
	tokenCache := token.NewCache(provider, constants.TokenFreshness)

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		setupLog.Error(err, "unable to create kubernetes client")
		os.Exit(1)
	}

	namespaceFilter := filter.NewNamespaceFilter(cfg.ExcludedNamespaces)
	lister := controller.NewKubernetesNamespaceLister(clientset, cfg.LabelSelector())
	reconciler := controller.NewKubernetesSecretReconciler(clientset, cfg.DockerRegistry, cfg.SecretName)

	scheduler, err := controller.NewScheduler(lister, tokenCache, reconciler, namespaceFilter, cfg.CronSchedule)
	if err != nil {
		setupLog.Error(err, "unable to create scheduler")
		os.Exit(1)
	}
	if err := mgr.Add(scheduler); err != nil {
		setupLog.Error(err, "unable to register scheduler")
		os.Exit(1)
	}

	watcher := controller.NewNamespaceWatcher(clientset, cfg.LabelSelector(), tokenCache, reconciler, namespaceFilter)
	if err := mgr.Add(watcher); err != nil {
		setupLog.Error(err, "unable to register namespace watcher")
		os.Exit(1)
	}

	// Add health checks
	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("starting manager")
	if err := mgr.Start(signalCtx); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}
