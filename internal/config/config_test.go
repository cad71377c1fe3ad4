package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ADMIN_USERS", "")
	t.Setenv("PREMIUM_USERS", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.UseSynthlang {
		t.Error("expected USE_SYNTHLANG default on")
	}
	if cfg.SynthlangCompressionLevel != LevelMedium {
		t.Errorf("expected medium compression default, got %s", cfg.SynthlangCompressionLevel)
	}
	if cfg.CacheMaxItems != 1000 {
		t.Errorf("expected default cache max items 1000, got %d", cfg.CacheMaxItems)
	}
	if cfg.DefaultRateLimitQPM != 60 || cfg.PremiumRateLimitQPM != 120 {
		t.Errorf("unexpected rate limit defaults: %d/%d", cfg.DefaultRateLimitQPM, cfg.PremiumRateLimitQPM)
	}
}

func TestValidateRejectsBadCompressionLevel(t *testing.T) {
	cfg := &Config{
		SynthlangCompressionLevel: "extreme",
		CacheSimilarityThreshold:  0.9,
		CacheMaxItems:             10,
		DefaultRateLimitQPM:       1,
		PremiumRateLimitQPM:       1,
		LLMTimeoutSeconds:         1,
		AuditSink:                 "stdout",
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for bad compression level")
	}
}

func TestToSet(t *testing.T) {
	set := toSet("alice, bob ,,carol")
	for _, name := range []string{"alice", "bob", "carol"} {
		if !set[name] {
			t.Errorf("expected %s in set", name)
		}
	}
	if len(set) != 3 {
		t.Errorf("expected 3 entries, got %d", len(set))
	}
}

func TestParseAPIKeys(t *testing.T) {
	entries := parseAPIKeys(" sk-admin:admin ; sk-multi:premium,basic ;; sk-bare: ")
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].Key != "sk-admin" || len(entries[0].Roles) != 1 || entries[0].Roles[0] != "admin" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Key != "sk-multi" || len(entries[1].Roles) != 2 {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
	if entries[2].Key != "sk-bare" || len(entries[2].Roles) != 0 {
		t.Errorf("unexpected third entry: %+v", entries[2])
	}
}
