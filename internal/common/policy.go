package common

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/augustdua/6degrees-sub006/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type rewardPolicyFile struct {
	GraceDuration     string `yaml:"grace_duration"`
	FreezeDuration    string `yaml:"freeze_duration"`
	DecayRatePerHour  string `yaml:"decay_rate_per_hour"`
	UnlockBaseCredits *int   `yaml:"unlock_base_credits"`
}

// LoadRewardPolicy reads a rewards.yaml file and applies it on top of
// the given base policy. Missing keys keep the base value.
func LoadRewardPolicy(policyFile string, base models.RewardPolicy) (models.RewardPolicy, error) {
	var policyPath string
	if filepath.IsAbs(policyFile) {
		policyPath = policyFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return base, fmt.Errorf("failed to get working directory: %w", err)
		}
		policyPath = filepath.Join(wd, policyFile)
	}

	data, err := os.ReadFile(policyPath)
	if err != nil {
		return base, fmt.Errorf("unable to read %s: %w", policyFile, err)
	}

	var file rewardPolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("unable to parse %s: %w", policyFile, err)
	}

	policy := base

	if file.GraceDuration != "" {
		duration, err := time.ParseDuration(file.GraceDuration)
		if err != nil {
			return base, fmt.Errorf("invalid grace_duration in %s: %w", policyFile, err)
		}
		policy.GraceDuration = duration
	}

	if file.FreezeDuration != "" {
		duration, err := time.ParseDuration(file.FreezeDuration)
		if err != nil {
			return base, fmt.Errorf("invalid freeze_duration in %s: %w", policyFile, err)
		}
		policy.FreezeDuration = duration
	}

	if file.DecayRatePerHour != "" {
		rate, err := decimal.NewFromString(file.DecayRatePerHour)
		if err != nil {
			return base, fmt.Errorf("invalid decay_rate_per_hour in %s: %w", policyFile, err)
		}
		policy.DecayRatePerHour = rate
	}

	if file.UnlockBaseCredits != nil {
		policy.UnlockBaseCredits = *file.UnlockBaseCredits
	}

	if policy.GraceDuration < 0 || policy.FreezeDuration < 0 {
		return base, fmt.Errorf("durations in %s must not be negative", policyFile)
	}

	if policy.DecayRatePerHour.IsNegative() {
		return base, fmt.Errorf("decay_rate_per_hour in %s must not be negative", policyFile)
	}

	return policy, nil
}
