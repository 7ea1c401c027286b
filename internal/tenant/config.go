package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/chairbook/internal/noshow"
	"github.com/wolfman30/chairbook/internal/timewindow"
)

var (
	// ErrTenantNotFound is returned when no configuration exists for the tenant.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrInvalidConfig is returned for configuration that fails validation.
	ErrInvalidConfig = errors.New("invalid tenant config")
)

// MaxGranularityMinutes bounds the slot step a tenant may configure.
const MaxGranularityMinutes = 240

// Config is the calendar context of one tenant.
type Config struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	// Timezone is an IANA zone name. Wall-clock math for the tenant happens here.
	Timezone string `json:"timezone"`
	// SlotGranularityMinutes overrides the service default when positive.
	SlotGranularityMinutes int           `json:"slot_granularity_minutes,omitempty"`
	NoShowPolicy           noshow.Policy `json:"no_show_policy"`
	UpdatedAt              time.Time     `json:"updated_at"`
}

// Validate checks the timezone, granularity and no-show policy.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TenantID) == "" {
		return fmt.Errorf("%w: tenant_id required", ErrInvalidConfig)
	}
	if _, err := timewindow.LoadZone(c.Timezone); err != nil {
		return err
	}
	if c.SlotGranularityMinutes < 0 || c.SlotGranularityMinutes > MaxGranularityMinutes {
		return fmt.Errorf("%w: slot_granularity_minutes %d not in [0, %d]",
			ErrInvalidConfig, c.SlotGranularityMinutes, MaxGranularityMinutes)
	}
	return c.NoShowPolicy.Validate()
}

// Location loads the tenant's zone.
func (c *Config) Location() (*time.Location, error) {
	return timewindow.LoadZone(c.Timezone)
}

// Granularity returns the tenant's slot step, or fallback when unset.
func (c *Config) Granularity(fallback int) int {
	if c.SlotGranularityMinutes > 0 {
		return c.SlotGranularityMinutes
	}
	return fallback
}

// Store persists tenant configuration as JSON in Redis.
type Store struct {
	redis *redis.Client
}

// NewStore creates a Redis-backed tenant directory.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("tenant: redis client required")
	}
	return &Store{redis: redisClient}
}

func (s *Store) key(tenantID string) string {
	return "tenant:config:" + tenantID
}

// Get loads the tenant configuration. Unknown tenants fail with ErrTenantNotFound.
func (s *Store) Get(ctx context.Context, tenantID string) (*Config, error) {
	data, err := s.redis.Get(ctx, s.key(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("tenant: get config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("tenant: unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Set validates and stores cfg.
func (s *Store) Set(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("tenant: marshal config: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(cfg.TenantID), data, 0).Err(); err != nil {
		return fmt.Errorf("tenant: set config: %w", err)
	}
	return nil
}

// NoShowPolicy returns the tenant's policy.
func (s *Store) NoShowPolicy(ctx context.Context, tenantID string) (noshow.Policy, error) {
	cfg, err := s.Get(ctx, tenantID)
	if err != nil {
		return noshow.Policy{}, err
	}
	return cfg.NoShowPolicy, nil
}
