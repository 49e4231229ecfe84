// Package config provides configuration for the ecrsync controller.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/lukaszraczylo/ecrsync/pkg/constants"
	"github.com/lukaszraczylo/ecrsync/pkg/filter"
)

// Environment variables understood by the controller. Values set in the
// environment take precedence over the config file.
const (
	EnvDockerRegistry     = "DOCKER_REGISTRY"
	EnvSecretName         = "ECR_SECRET_NAME"
	EnvLabelName          = "ECR_LABEL_NAME"
	EnvLabelValue         = "ECR_LABEL_VALUE"
	EnvCronSchedule       = "ECR_CRON_SCHEDULE"
	EnvExcludedNamespaces = "ECR_EXCLUDED_NAMESPACES"
)

// Config holds all configuration for the controller.
type Config struct {
	// DockerRegistry is the registry host the pull secret grants access to
	DockerRegistry string `yaml:"dockerRegistry"`
	// SecretName is the name of the managed pull secret in each namespace
	SecretName string `yaml:"secretName"`
	// LabelName is the namespace label key that opts a namespace in
	LabelName string `yaml:"labelName"`
	// LabelValue is the value the opt-in label must carry
	LabelValue string `yaml:"labelValue"`
	// CronSchedule is the standard cron expression for periodic sweeps
	CronSchedule string `yaml:"cronSchedule"`
	// ExcludedNamespaces lists namespace names or glob patterns that are
	// never written to, even when labeled
	ExcludedNamespaces []string `yaml:"excludedNamespaces"`

	// LeaderElection configuration
	LeaderElection LeaderElectionConfig `yaml:"-"`
}

// LeaderElectionConfig holds leader election settings.
type LeaderElectionConfig struct {
	// ResourceName is the name of the leader election resource
	ResourceName string
	// ResourceNamespace is the namespace for the leader election resource
	ResourceNamespace string

	// LeaseDuration is the lease duration
	LeaseDuration time.Duration
	// RenewDeadline is the renew deadline
	RenewDeadline time.Duration
	// RetryPeriod is the retry period
	RetryPeriod time.Duration

	// Enabled enables leader election
	Enabled bool
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		SecretName:   constants.DefaultSecretName,
		CronSchedule: constants.DefaultCronSchedule,
	}
}

// LoadFile overlays the YAML config file at path onto c. Keys absent from
// the file leave the corresponding fields untouched.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return nil
}

// LoadEnv overlays environment variables onto c. Unset variables leave the
// corresponding fields untouched.
func (c *Config) LoadEnv() {
	if v := os.Getenv(EnvDockerRegistry); v != "" {
		c.DockerRegistry = v
	}
	if v := os.Getenv(EnvSecretName); v != "" {
		c.SecretName = v
	}
	if v := os.Getenv(EnvLabelName); v != "" {
		c.LabelName = v
	}
	if v := os.Getenv(EnvLabelValue); v != "" {
		c.LabelValue = v
	}
	if v := os.Getenv(EnvCronSchedule); v != "" {
		c.CronSchedule = v
	}
	if v := os.Getenv(EnvExcludedNamespaces); v != "" {
		c.ExcludedNamespaces = filter.ParseNamespaceList(v)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DockerRegistry == "" {
		return fmt.Errorf("docker registry is required (set %s)", EnvDockerRegistry)
	}

	if c.SecretName == "" {
		return fmt.Errorf("secret name is required (set %s)", EnvSecretName)
	}
	if errs := validation.IsDNS1123Subdomain(c.SecretName); len(errs) > 0 {
		return fmt.Errorf("invalid secret name %q: %s", c.SecretName, strings.Join(errs, "; "))
	}

	if c.LabelName == "" {
		return fmt.Errorf("label name is required (set %s)", EnvLabelName)
	}
	if errs := validation.IsQualifiedName(c.LabelName); len(errs) > 0 {
		return fmt.Errorf("invalid label name %q: %s", c.LabelName, strings.Join(errs, "; "))
	}

	if c.LabelValue == "" {
		return fmt.Errorf("label value is required (set %s)", EnvLabelValue)
	}
	if errs := validation.IsValidLabelValue(c.LabelValue); len(errs) > 0 {
		return fmt.Errorf("invalid label value %q: %s", c.LabelValue, strings.Join(errs, "; "))
	}

	if _, err := cron.ParseStandard(c.CronSchedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", c.CronSchedule, err)
	}

	for _, entry := range c.ExcludedNamespaces {
		if err := filter.ValidatePattern(entry); err != nil {
			return fmt.Errorf("invalid excluded namespace entry: %w", err)
		}
	}

	return nil
}

// LabelSelector returns the namespace selector in its string form,
// e.g. "team.example.com/pull-secrets=enabled".
func (c *Config) LabelSelector() string {
	return labels.Set{c.LabelName: c.LabelValue}.String()
}
