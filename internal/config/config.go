// Package config loads environment-driven configuration for both the
// observer and agent services, the way the teacher's internal/config
// package loads trading configuration: viper with SetEnvPrefix/AutomaticEnv
// plus explicit SetDefault calls, unmarshaled into a tagged struct.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every environment-driven knob enumerated in SPEC_FULL.md §6.
type Config struct {
	InternalAPIKey      string        `mapstructure:"internal_api_key"`
	AdminToken          string        `mapstructure:"admin_token"`
	LocalNetworkCIDR    string        `mapstructure:"local_network_cidr"`
	IPSalt              string        `mapstructure:"ip_salt"`
	ModelGatewayKey     string        `mapstructure:"model_gateway_key"`
	ModelGatewayURL     string        `mapstructure:"model_gateway_url"`
	ModelTier           []string      `mapstructure:"-"`
	ModelTierRaw        string        `mapstructure:"model_tier"`
	RespawnDelayMinS    int           `mapstructure:"respawn_delay_min_s"`
	RespawnDelayMaxS    int           `mapstructure:"respawn_delay_max_s"`
	SyncIntervalS       int           `mapstructure:"sync_interval_s"`
	VotingWindowS       int           `mapstructure:"voting_window_s"`
	BudgetPollIntervalS int           `mapstructure:"budget_poll_interval_s"`
	MonthlyBudgetUSD    float64       `mapstructure:"monthly_budget_usd"`
	ThinkIntervalMinS   int           `mapstructure:"think_interval_min_s"`
	ThinkIntervalMaxS   int           `mapstructure:"think_interval_max_s"`
	ModelSwitchFloorUSD float64       `mapstructure:"model_switch_floor_usd"`
	DataDir             string        `mapstructure:"data_dir"`
	VaultAddr           string        `mapstructure:"vault_addr"`
	VaultToken          string        `mapstructure:"vault_token"`
	TelegramBotToken    string        `mapstructure:"telegram_bot_token"`
	TelegramChatID      int64         `mapstructure:"telegram_chat_id"`
	ObserverBaseURL     string        `mapstructure:"observer_base_url"`
	AgentBaseURL        string        `mapstructure:"agent_base_url"`
	ObserverListenAddr  string        `mapstructure:"observer_listen_addr"`
	AgentListenAddr     string        `mapstructure:"agent_listen_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("local_network_cidr", "192.168.0.0/24")
	v.SetDefault("model_gateway_url", "http://127.0.0.1:9090")
	v.SetDefault("model_tier", "model-a,model-b,model-c")
	v.SetDefault("respawn_delay_min_s", 10)
	v.SetDefault("respawn_delay_max_s", 60)
	v.SetDefault("sync_interval_s", 30)
	v.SetDefault("voting_window_s", 3600)
	v.SetDefault("budget_poll_interval_s", 30)
	v.SetDefault("monthly_budget_usd", 5.00)
	v.SetDefault("think_interval_min_s", 60)
	v.SetDefault("think_interval_max_s", 300)
	v.SetDefault("model_switch_floor_usd", 0.50)
	v.SetDefault("data_dir", "./data")
	v.SetDefault("observer_base_url", "http://127.0.0.1:8080")
	v.SetDefault("agent_base_url", "http://127.0.0.1:8081")
	v.SetDefault("observer_listen_addr", ":8080")
	v.SetDefault("agent_listen_addr", ":8081")
}

// Load reads configuration purely from the environment (no config file is
// required — every knob in SPEC_FULL.md §6 has an env var), mirroring the
// teacher's AutomaticEnv + SetEnvPrefix pattern but with an empty prefix
// since the env vars are already unprefixed in the spec.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	for _, key := range []string{
		"internal_api_key", "admin_token", "local_network_cidr", "ip_salt",
		"model_gateway_key", "model_gateway_url", "model_tier",
		"respawn_delay_min_s", "respawn_delay_max_s", "sync_interval_s",
		"voting_window_s", "budget_poll_interval_s", "monthly_budget_usd",
		"think_interval_min_s", "think_interval_max_s", "model_switch_floor_usd",
		"data_dir", "vault_addr", "vault_token", "telegram_bot_token",
		"telegram_chat_id", "observer_base_url", "agent_base_url",
		"observer_listen_addr", "agent_listen_addr",
	} {
		_ = v.BindEnv(key, strings.ToUpper(key))
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ModelTierRaw = v.GetString("model_tier")
	cfg.ModelTier = splitCSV(cfg.ModelTierRaw)

	return cfg, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) RespawnDelayRange() (time.Duration, time.Duration) {
	return time.Duration(c.RespawnDelayMinS) * time.Second, time.Duration(c.RespawnDelayMaxS) * time.Second
}

func (c *Config) ThinkIntervalRange() (time.Duration, time.Duration) {
	return time.Duration(c.ThinkIntervalMinS) * time.Second, time.Duration(c.ThinkIntervalMaxS) * time.Second
}

func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalS) * time.Second
}

func (c *Config) VotingWindow() time.Duration {
	return time.Duration(c.VotingWindowS) * time.Second
}

func (c *Config) BudgetPollInterval() time.Duration {
	return time.Duration(c.BudgetPollIntervalS) * time.Second
}
