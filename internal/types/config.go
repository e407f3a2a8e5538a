package types

import (
	"fmt"

	"github.com/samber/lo"
)

type RunMode string

const (
	// ModeCycle runs one dunning cycle for every configured tenant and exits
	ModeCycle RunMode = "cycle"
	// ModeScheduler runs dunning cycles on a fixed interval
	ModeScheduler RunMode = "scheduler"
	// ModeConsumer runs the bounce inbox consumer
	ModeConsumer RunMode = "consumer"
	// ModeLocal runs the scheduler and the consumer in one process
	ModeLocal RunMode = "local"
)

func (m RunMode) Validate() error {
	allowed := []RunMode{ModeCycle, ModeScheduler, ModeConsumer, ModeLocal}
	if !lo.Contains(allowed, m) {
		return fmt.Errorf("invalid run mode: %s", m)
	}
	return nil
}

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// StoreType selects the durable snapshot backend
type StoreType string

const (
	StoreTypeFile     StoreType = "file"
	StoreTypeRedis    StoreType = "redis"
	StoreTypePostgres StoreType = "postgres"
)

func (s StoreType) Validate() error {
	allowed := []StoreType{StoreTypeFile, StoreTypeRedis, StoreTypePostgres}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid store type: %s", s)
	}
	return nil
}
