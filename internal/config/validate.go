package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.poll_interval":        c.Workflow.PollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.worker_count":         c.Workflow.WorkerCount,
		"workflow.checkout_batch_size":  c.Workflow.CheckoutBatchSize,
		"workflow.checkout_timeout":     c.Workflow.CheckoutTimeout,
		"workflow.stale_sweep_interval": c.Workflow.StaleSweepInterval,
		"workflow.max_retries":          c.Workflow.MaxRetries,
	}); err != nil {
		return err
	}
	if c.Workflow.MaxDelegationDepth < 0 {
		return errors.New("workflow.max_delegation_depth must not be negative")
	}
	if c.Workflow.CheckoutTimeout <= c.Workflow.StaleSweepInterval {
		return errors.New("workflow.checkout_timeout must be greater than workflow.stale_sweep_interval")
	}
	return nil
}

func (c *Config) validateFetch() error {
	for _, status := range c.Fetch.PermanentStatuses {
		if status < 100 || status > 599 {
			return fmt.Errorf("fetch.permanent_statuses contains invalid status %d", status)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
