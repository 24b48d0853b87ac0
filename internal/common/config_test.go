package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	if config.Scheduler.PollInterval != "2s" {
		t.Errorf("poll_interval = %s, want 2s", config.Scheduler.PollInterval)
	}
	if config.Cache.TTLHours["profile_snapshot"] != 48 {
		t.Errorf("profile_snapshot TTL = %d, want 48", config.Cache.TTLHours["profile_snapshot"])
	}
	if config.Actor.MaxRetries != 3 {
		t.Errorf("max_retries = %d, want 3", config.Actor.MaxRetries)
	}
	if config.Resolver.MaxTargets != 500 {
		t.Errorf("max_targets = %d, want 500", config.Resolver.MaxTargets)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "velocity.toml")
	content := `
environment = "production"

[scheduler]
poll_interval = "10s"

[actor]
tokens = ["tok-a", "tok-b"]

[cache.ttl_hours]
follower_list = 6
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !config.IsProduction() {
		t.Error("environment override not applied")
	}
	if config.SchedulerPollInterval() != 10*time.Second {
		t.Errorf("poll interval = %s, want 10s", config.SchedulerPollInterval())
	}
	if len(config.Actor.Tokens) != 2 || config.Actor.Tokens[0] != "tok-a" {
		t.Errorf("tokens = %v", config.Actor.Tokens)
	}
	if config.Cache.TTLHours["follower_list"] != 6 {
		t.Errorf("follower_list TTL = %d, want 6", config.Cache.TTLHours["follower_list"])
	}
	// Untouched defaults survive the merge.
	if config.Actor.MaxRetries != 3 {
		t.Errorf("max_retries = %d, want default 3", config.Actor.MaxRetries)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VELOCITY_ACTOR_TOKENS", "env-a, env-b ,")
	t.Setenv("VELOCITY_SCHEDULER_POLL_INTERVAL", "7s")
	t.Setenv("VELOCITY_ANALYSIS_PROVIDER", "gemini")

	config, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(config.Actor.Tokens) != 2 || config.Actor.Tokens[1] != "env-b" {
		t.Errorf("tokens = %v, want [env-a env-b]", config.Actor.Tokens)
	}
	if config.Scheduler.PollInterval != "7s" {
		t.Errorf("poll_interval = %s, want 7s", config.Scheduler.PollInterval)
	}
	if config.Analysis.Provider != AnalysisProviderGemini {
		t.Errorf("provider = %s, want gemini", config.Analysis.Provider)
	}
}

func TestTTLPolicyFileOverride(t *testing.T) {
	dir := t.TempDir()
	policyPath := filepath.Join(dir, "ttl.yaml")
	policy := "profile_snapshot: 72\nfollower_list: 12\nignored_zero: 0\n"
	if err := os.WriteFile(policyPath, []byte(policy), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("VELOCITY_CACHE_POLICY_FILE", policyPath)
	config, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if config.Cache.TTLHours["profile_snapshot"] != 72 {
		t.Errorf("profile_snapshot = %d, want 72", config.Cache.TTLHours["profile_snapshot"])
	}
	if config.Cache.TTLHours["follower_list"] != 12 {
		t.Errorf("follower_list = %d, want 12", config.Cache.TTLHours["follower_list"])
	}
	// Zero and negative values never override.
	if _, ok := config.Cache.TTLHours["ignored_zero"]; ok {
		t.Error("zero TTL override should be ignored")
	}
	// Default row untouched by the policy file.
	if config.Cache.TTLHours["default"] != 24 {
		t.Errorf("default = %d, want 24", config.Cache.TTLHours["default"])
	}
}

func TestValidateRejectsBadDurations(t *testing.T) {
	config := NewDefaultConfig()
	config.Actor.Tokens = []string{"tok"}
	if err := config.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	config.Scheduler.PollInterval = "not-a-duration"
	if err := config.Validate(); err == nil {
		t.Error("expected validation error for bad duration")
	}
}

func TestDurationAccessorFallbacks(t *testing.T) {
	config := NewDefaultConfig()
	config.Actor.PollInterval = "garbage"
	config.Actor.MaxWait = ""

	if config.ActorPollInterval() != 15*time.Second {
		t.Errorf("poll interval fallback = %s", config.ActorPollInterval())
	}
	if config.ActorMaxWait() != 24*time.Hour {
		t.Errorf("max wait fallback = %s", config.ActorMaxWait())
	}
}
