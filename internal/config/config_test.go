package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(writeConfig(t, "app:\n  env: dev\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":8080" {
		t.Fatalf("addr = %q", c.Server.Addr)
	}
	if c.Storage.Driver != "memory" || c.Cache.Kind != "memory" {
		t.Fatalf("drivers = %q / %q", c.Storage.Driver, c.Cache.Kind)
	}
	if c.OAuth2.AccessTTL != "15m" || c.OAuth2.RefreshTTL != "720h" {
		t.Fatalf("ttls = %q / %q", c.OAuth2.AccessTTL, c.OAuth2.RefreshTTL)
	}
	if c.Signing.Default != "RS256" {
		t.Fatalf("signing default = %q", c.Signing.Default)
	}
	if !c.ResourceConsistencyEnabled() {
		t.Fatal("resource consistency must default to enabled")
	}
}

func TestLoad_ResourceConsistencyOptOut(t *testing.T) {
	c, err := Load(writeConfig(t, "oauth2:\n  resource_consistency: false\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.ResourceConsistencyEnabled() {
		t.Fatal("explicit opt-out must stick")
	}
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	_, err := Load(writeConfig(t, "storage:\n  driver: postgres\n"))
	if err == nil {
		t.Fatal("postgres without dsn must fail")
	}
}

func TestLoad_BadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, "oauth2:\n  access_ttl: quince\n"))
	if err == nil {
		t.Fatal("unparseable duration must fail")
	}
}

func TestLoad_SigningKeyRules(t *testing.T) {
	// HS sin secret
	_, err := Load(writeConfig(t, "signing:\n  keys:\n    - kid: k1\n      alg: HS256\n"))
	if err == nil {
		t.Fatal("HS key without secret must fail")
	}
	// RS sin pem_file
	_, err = Load(writeConfig(t, "signing:\n  keys:\n    - kid: k1\n      alg: RS256\n"))
	if err == nil {
		t.Fatal("RS key without pem_file must fail")
	}
	// sin alg: pem_file obligatorio, el alg se deriva después del tamaño
	_, err = Load(writeConfig(t, "signing:\n  keys:\n    - kid: k1\n"))
	if err == nil {
		t.Fatal("key without alg and pem_file must fail")
	}
	c, err := Load(writeConfig(t, "signing:\n  keys:\n    - kid: k1\n      alg: HS256\n      secret: s\n"))
	if err != nil {
		t.Fatalf("valid HS key: %v", err)
	}
	if len(c.Signing.Keys) != 1 || c.Signing.Keys[0].KID != "k1" {
		t.Fatalf("keys = %+v", c.Signing.Keys)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("OAUTH2_ACCESS_TTL", "5m")
	t.Setenv("RATE_ENABLED", "true")

	c, err := Load(writeConfig(t, "server:\n  addr: \":8080\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":9999" {
		t.Fatalf("addr = %q", c.Server.Addr)
	}
	if c.OAuth2.AccessTTL != "5m" {
		t.Fatalf("access_ttl = %q", c.OAuth2.AccessTTL)
	}
	if !c.Rate.Enabled {
		t.Fatal("rate.enabled override lost")
	}
}

func TestDuration(t *testing.T) {
	if Duration("15m") != 15*time.Minute {
		t.Fatal("15m")
	}
}
