// Package constants defines label keys, default values, and fixed constants
// used by the ecrsync controller.
package constants

import "time"

const (
	// Domain is the base domain for all ecrsync labels and annotations
	Domain = "ecrsync.raczylo.com"

	// LabelManagedBy identifies secrets created by ecrsync.
	// Set on create only; patches never touch metadata, so labels added by
	// operators (or this one) survive subsequent credential refreshes.
	// Value: "ecrsync"
	LabelManagedBy = Domain + "/managed-by"

	// ControllerName is the name of the controller (for field manager, labels, metrics).
	ControllerName = "ecrsync"

	// LeaderElectionID is the name of the leader election lease.
	LeaderElectionID = "ecrsync-controller-leader"

	// RegistryUsername is the fixed username stored next to every ECR token.
	// ECR authorization tokens are always paired with the literal user "AWS".
	RegistryUsername = "AWS"

	// DefaultSecretName is the name of the managed pull secret unless overridden.
	DefaultSecretName = "ecr-creds"

	// DefaultCronSchedule runs a full reconciliation sweep every six hours,
	// half the twelve-hour lifetime of an ECR authorization token.
	DefaultCronSchedule = "0 */6 * * *"

	// TokenFreshness is the maximum age at which a cached token may be reused
	// without contacting the provider. Fixed at half the token lifetime.
	TokenFreshness = 6 * time.Hour

	// WatchRetryDelay is how long the watcher waits before retrying a watch
	// call that could not be established at all. A stream that was open and
	// then ended is re-established immediately, without this delay.
	WatchRetryDelay = 5 * time.Second
)
