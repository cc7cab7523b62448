package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validatePlatforms(); err != nil {
		return err
	}
	if err := c.validateDistances(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validateScheduler() error {
	s := c.Scheduler
	if s.PollInterval <= 0 {
		return errors.New("scheduler.poll_interval must be positive")
	}
	if s.ErrorRetryInterval <= 0 {
		return errors.New("scheduler.error_retry_interval must be positive")
	}
	if s.SettlingDays < 0 {
		return errors.New("scheduler.settling_days must be zero or positive")
	}
	if s.DelayedRetryMinutes <= 0 {
		return errors.New("scheduler.delayed_retry_minutes must be positive")
	}
	if s.ReaperGraceMinutes < 0 {
		return errors.New("scheduler.reaper_grace_minutes must be zero or positive")
	}
	if s.DefaultTimeoutMinutes <= 0 {
		return errors.New("scheduler.default_timeout_minutes must be positive")
	}
	return nil
}

func (c *Config) validatePlatforms() error {
	for id, p := range c.Platforms {
		if !p.Enabled {
			continue
		}
		if p.BaseURL == "" {
			return fmt.Errorf("platforms.%s.base_url must be set when the platform is enabled", id)
		}
		parsed, err := url.Parse(p.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("platforms.%s.base_url %q is not an absolute URL", id, p.BaseURL)
		}
		if p.TimeoutMinutes < 0 {
			return fmt.Errorf("platforms.%s.timeout_minutes must be zero or positive", id)
		}
	}
	return nil
}

func (c *Config) validateDistances() error {
	if c.Distances.DefaultLength <= 0 {
		return errors.New("distances.default_length must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func (c *Config) validateNotifications() error {
	topic := strings.TrimSpace(c.Notifications.NtfyTopic)
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic %q must be a full URL", topic)
	}
	return nil
}
