package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// envelopeVersion is the current collection envelope version. Stored
// payloads carry their version so shape changes are migrated explicitly
// at load time instead of being backfilled ad hoc.
const envelopeVersion = 1

// envelope wraps a serialized collection with its schema version.
type envelope struct {
	Version int             `json:"v"`
	Data    json.RawMessage `json:"data"`
}

// MigrateFunc upgrades a raw payload from an older envelope version to
// the current one. It is applied once, at load time.
type MigrateFunc func(version int, data json.RawMessage) (json.RawMessage, error)

// Collection persists one engine collection of type T under a fixed key,
// as a versioned JSON envelope. A load that finds absent, corrupt, or
// unmigratable data resets to the zero value of T rather than failing:
// persistence problems degrade the engine to an in-memory session.
type Collection[T any] struct {
	store   Store
	key     string
	migrate MigrateFunc
	logger  *slog.Logger
}

// NewCollection creates a collection bound to key in store. migrate may
// be nil when no older envelope versions exist.
func NewCollection[T any](store Store, key string, migrate MigrateFunc, logger *slog.Logger) *Collection[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collection[T]{store: store, key: key, migrate: migrate, logger: logger}
}

// Load reads and decodes the collection. Absent or corrupt data returns
// the zero value of T and no error.
func (c *Collection[T]) Load(ctx context.Context) (T, error) {
	var zero T

	raw, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		return zero, fmt.Errorf("failed to load %q: %w", c.key, err)
	}
	if !ok {
		return zero, nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		c.logger.Warn("corrupt collection envelope, resetting to empty",
			"key", c.key, "error", err)
		return zero, nil
	}

	data := env.Data
	if env.Version != envelopeVersion {
		if c.migrate == nil {
			c.logger.Warn("unsupported collection version, resetting to empty",
				"key", c.key, "version", env.Version)
			return zero, nil
		}
		data, err = c.migrate(env.Version, data)
		if err != nil {
			c.logger.Warn("collection migration failed, resetting to empty",
				"key", c.key, "version", env.Version, "error", err)
			return zero, nil
		}
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		c.logger.Warn("corrupt collection payload, resetting to empty",
			"key", c.key, "error", err)
		return zero, nil
	}
	return out, nil
}

// Save encodes and writes the collection.
func (c *Collection[T]) Save(ctx context.Context, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", c.key, err)
	}
	env, err := json.Marshal(envelope{Version: envelopeVersion, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode envelope for %q: %w", c.key, err)
	}
	if err := c.store.Set(ctx, c.key, string(env)); err != nil {
		return fmt.Errorf("failed to save %q: %w", c.key, err)
	}
	return nil
}
