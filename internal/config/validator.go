package config

import (
	"fmt"
	"net"
)

// Role distinguishes which service is validating startup configuration,
// since required secrets differ slightly between observer and agent.
type Role string

const (
	RoleObserver Role = "observer"
	RoleAgent    Role = "agent"
)

// ValidateStartup mirrors the teacher's Validator.ValidateStartup: a single
// pass that fails fast on missing/weak required secrets and malformed
// values before any background loop or HTTP listener starts.
func ValidateStartup(cfg *Config, role Role) error {
	var problems []string

	if cfg.InternalAPIKey == "" {
		problems = append(problems, "INTERNAL_API_KEY is required")
	} else if r := ValidateSecret("INTERNAL_API_KEY", cfg.InternalAPIKey, 16); r.Strength == SecretWeak {
		problems = append(problems, fmt.Sprintf("INTERNAL_API_KEY: %v", r.Problems))
	}

	if cfg.IPSalt == "" {
		problems = append(problems, "IP_SALT is required")
	}

	if role == RoleObserver {
		if cfg.AdminToken == "" {
			problems = append(problems, "ADMIN_TOKEN is required")
		} else if r := ValidateSecret("ADMIN_TOKEN", cfg.AdminToken, 16); r.Strength == SecretWeak {
			problems = append(problems, fmt.Sprintf("ADMIN_TOKEN: %v", r.Problems))
		}
		if _, _, err := net.ParseCIDR(cfg.LocalNetworkCIDR); err != nil {
			problems = append(problems, fmt.Sprintf("LOCAL_NETWORK_CIDR is not a valid CIDR: %v", err))
		}
	}

	if role == RoleAgent {
		if cfg.ModelGatewayKey == "" {
			problems = append(problems, "MODEL_GATEWAY_KEY is required")
		}
		if len(cfg.ModelTier) == 0 {
			problems = append(problems, "MODEL_TIER must name at least one model")
		}
	}

	if cfg.RespawnDelayMinS > cfg.RespawnDelayMaxS {
		problems = append(problems, "RESPAWN_DELAY_MIN_S must be <= RESPAWN_DELAY_MAX_S")
	}
	if cfg.ThinkIntervalMinS > cfg.ThinkIntervalMaxS {
		problems = append(problems, "THINK_INTERVAL_MIN_S must be <= THINK_INTERVAL_MAX_S")
	}
	if cfg.MonthlyBudgetUSD <= 0 {
		problems = append(problems, "MONTHLY_BUDGET_USD must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("startup validation failed: %v", problems)
	}
	return nil
}
