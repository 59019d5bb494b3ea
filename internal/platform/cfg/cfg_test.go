package cfg

import (
	"strings"
	"testing"
	"time"
)

type testConfig struct {
	Addr        string        `mapstructure:"addr"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

func (c *testConfig) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
}

func TestDecode_Basic(t *testing.T) {
	input := map[string]any{
		"addr":         "cache:6379",
		"db":           int64(2),
		"dial_timeout": "250ms",
	}

	var c testConfig
	if err := Decode(input, &c); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if c.Addr != "cache:6379" {
		t.Errorf("Addr = %q", c.Addr)
	}
	if c.DB != 2 {
		t.Errorf("DB = %d, want 2", c.DB)
	}
	if c.DialTimeout != 250*time.Millisecond {
		t.Errorf("DialTimeout = %v, want 250ms", c.DialTimeout)
	}
}

func TestDecode_ApplyDefaults(t *testing.T) {
	var c testConfig
	if err := Decode(nil, &c); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if c.Addr != "localhost:6379" {
		t.Errorf("Addr = %q, want default", c.Addr)
	}
}

func TestDecodeWithUnused_ReportsSortedKeys(t *testing.T) {
	input := map[string]any{
		"addr":       "cache:6379",
		"zeta":       1,
		"alpha_typo": "x",
	}

	var c testConfig
	unused, err := DecodeWithUnused(input, &c)
	if err != nil {
		t.Fatalf("DecodeWithUnused failed: %v", err)
	}
	if len(unused) != 2 || unused[0] != "alpha_typo" || unused[1] != "zeta" {
		t.Errorf("unused = %v, want [alpha_typo zeta]", unused)
	}
}

func TestDecodeStrict_FailsOnUnused(t *testing.T) {
	var c testConfig
	err := DecodeStrict(map[string]any{"adr": "typo"}, &c)
	if err == nil || !strings.Contains(err.Error(), "adr") {
		t.Fatalf("expected unused key error, got %v", err)
	}
}
