package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := load(viper.New())

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 7.0, cfg.Reorder.LeadTimeDays)
	assert.Equal(t, 1.645, cfg.Reorder.ServiceZ)
	assert.Equal(t, 7, cfg.Reorder.MeanWindow)
	assert.Equal(t, 6, cfg.Reorder.VarianceWindow)
	assert.Equal(t, "latest-row", cfg.Reorder.AggregationPolicy)
	assert.Equal(t, "memory", cfg.Events.Transport)
	assert.Equal(t, 4, cfg.Backfill.Workers)
	assert.False(t, cfg.Cache.Enabled)
	assert.Empty(t, cfg.Storage.Endpoint)
	assert.Equal(t, "postgres", cfg.Database.Backend)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("REORDER_LEAD_TIME_DAYS", "14")
	t.Setenv("REORDER_SERVICE_Z", "2.33")
	t.Setenv("REORDER_AGGREGATION_POLICY", "full-history-mean")
	t.Setenv("EVENTS_TRANSPORT", "REDIS")
	t.Setenv("BACKFILL_WORKERS", "16")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("DB_BACKEND", "Memory")

	cfg := load(viper.New())

	assert.Equal(t, 14.0, cfg.Reorder.LeadTimeDays)
	assert.Equal(t, 2.33, cfg.Reorder.ServiceZ)
	assert.Equal(t, "full-history-mean", cfg.Reorder.AggregationPolicy)
	assert.Equal(t, "redis", cfg.Events.Transport)
	assert.Equal(t, 16, cfg.Backfill.Workers)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "memory", cfg.Database.Backend)
}
