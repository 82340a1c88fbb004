package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"curvemint/crypto"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func testAddress(t *testing.T) string {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key.PubKey().Address().String()
}

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.RPCAddress != ":8545" {
		t.Fatalf("unexpected default rpc address %q", cfg.RPCAddress)
	}
	if cfg.ReserveRatioPpm != 500_000 {
		t.Fatalf("unexpected default ratio %d", cfg.ReserveRatioPpm)
	}
	if _, err := crypto.DecodeAddress(cfg.AdminAddress); err != nil {
		t.Fatalf("generated admin address invalid: %v", err)
	}
	if cfg.VaultAddress == cfg.AdminAddress {
		t.Fatalf("vault must not share the operator key")
	}
	key, err := crypto.LoadFromKeystore(cfg.OperatorKeystorePath, "")
	if err != nil {
		t.Fatalf("operator keystore unreadable: %v", err)
	}
	if key.PubKey().Address().String() != cfg.AdminAddress {
		t.Fatalf("keystore key does not match the admin address")
	}
}

func TestLoadAppliesDefaultsAndValidates(t *testing.T) {
	addr := testAddress(t)
	path := writeConfig(t, `
AdminAddress = "`+addr+`"
FounderAddress = "`+addr+`"
VaultAddress = "`+testAddress(t)+`"
DeployerAddress = "`+addr+`"
FounderPercentage = 25
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.FounderPercentage != 25 {
		t.Fatalf("explicit percentage lost: %d", cfg.FounderPercentage)
	}
	if cfg.TokenSymbol != "CVM" {
		t.Fatalf("symbol default not applied: %q", cfg.TokenSymbol)
	}
	if cfg.InitialSupply != "1000000" {
		t.Fatalf("supply default not applied: %q", cfg.InitialSupply)
	}
}

func TestLoadRejectsBadAddresses(t *testing.T) {
	addr := testAddress(t)
	path := writeConfig(t, `
AdminAddress = "not-bech32"
FounderAddress = "`+addr+`"
VaultAddress = "`+addr+`"
DeployerAddress = "`+addr+`"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "AdminAddress") {
		t.Fatalf("expected admin address error, got %v", err)
	}
}

func TestValidateBounds(t *testing.T) {
	addr := testAddress(t)
	cfg := &Config{
		AdminAddress:    addr,
		FounderAddress:  addr,
		VaultAddress:    addr,
		DeployerAddress: addr,
		InitialSupply:   "100",
		InitialReserve:  "0",
	}

	cfg.ReserveRatioPpm = 1_000_001
	if err := Validate(cfg); err == nil {
		t.Fatalf("ratio above one must be rejected")
	}
	cfg.ReserveRatioPpm = 500_000

	cfg.FounderPercentage = 101
	if err := Validate(cfg); err == nil {
		t.Fatalf("percentage above 100 must be rejected")
	}
	cfg.FounderPercentage = 10

	cfg.InitialReserve = "-5"
	if err := Validate(cfg); err == nil {
		t.Fatalf("negative reserve must be rejected")
	}
	cfg.InitialReserve = "0"

	if err := Validate(cfg); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
