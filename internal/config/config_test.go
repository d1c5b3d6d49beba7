package config

import "testing"

func TestDefaultIsValidUnderDevMode(t *testing.T) {
	cfg := Default()
	cfg.Auth.DevMode = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on Default()+DevMode: %v", err)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Auth.DevMode = true
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for port 0")
	}
	cfg.Server.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for port > 65535")
	}
}

func TestValidateRequiresProvidersOutsideDevMode(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when no providers configured and dev_mode is false")
	}
}

func TestValidateRequiresDefaultProviderPresent(t *testing.T) {
	cfg := Default()
	cfg.Auth.DevMode = true
	cfg.Providers = map[string]Provider{
		"openai": {Driver: "openai", Enabled: true},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when default_provider is absent from providers")
	}
}

func TestValidateRequiresAuthSecretOutsideDevMode(t *testing.T) {
	cfg := Default()
	cfg.Providers = map[string]Provider{
		"anthropic": {Driver: "anthropic", Enabled: true},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when neither default_password nor jwt_secret is set")
	}

	cfg.Auth.DefaultPassword = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() with default_password set: %v", err)
	}
}

func TestValidateRejectsNonPositiveQueueSettings(t *testing.T) {
	cfg := Default()
	cfg.Auth.DevMode = true
	cfg.Queue.MaxSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for queue_max_size 0")
	}

	cfg = Default()
	cfg.Auth.DevMode = true
	cfg.Queue.LLMWorkerCount = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for llm_worker_count 0")
	}
}
