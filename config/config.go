package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"curvemint/crypto"
	"curvemint/native/curve"

	"github.com/BurntSushi/toml"
)

// Telemetry configures the optional OTLP trace/metric export.
type Telemetry struct {
	Enabled     bool    `toml:"Enabled"`
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	ServiceName string  `toml:"ServiceName"`
	Environment string  `toml:"Environment"`
	SampleRatio float64 `toml:"SampleRatio"`
}

type Config struct {
	RPCAddress           string `toml:"RPCAddress"`
	RPCAuthTokenEnv      string `toml:"RPCAuthTokenEnv"`
	DataDir              string `toml:"DataDir"`
	OperatorKeystorePath string `toml:"OperatorKeystorePath"`
	TokenName            string `toml:"TokenName"`
	TokenSymbol          string `toml:"TokenSymbol"`
	ReserveRatioPpm      uint32 `toml:"ReserveRatioPpm"`
	FounderPercentage    uint64 `toml:"FounderPercentage"`
	AdminAddress         string `toml:"AdminAddress"`
	FounderAddress       string `toml:"FounderAddress"`
	VaultAddress         string `toml:"VaultAddress"`
	DeployerAddress      string `toml:"DeployerAddress"`
	InitialSupply        string `toml:"InitialSupply"`
	InitialReserve       string `toml:"InitialReserve"`

	Telemetry Telemetry `toml:"Telemetry"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8545"
	}
	if strings.TrimSpace(cfg.RPCAuthTokenEnv) == "" {
		cfg.RPCAuthTokenEnv = "CURVEMINT_RPC_TOKEN"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./curvemint-data"
	}
	if strings.TrimSpace(cfg.TokenName) == "" {
		cfg.TokenName = "Curvemint Token"
	}
	if strings.TrimSpace(cfg.TokenSymbol) == "" {
		cfg.TokenSymbol = "CVM"
	}
	if cfg.ReserveRatioPpm == 0 {
		cfg.ReserveRatioPpm = curve.MaxRatioPpm / 2
	}
	if strings.TrimSpace(cfg.InitialSupply) == "" {
		cfg.InitialSupply = "1000000"
	}
	// The engine refuses a zero reserve seed: the curve needs a nonzero
	// denominator from the first trade on.
	if strings.TrimSpace(cfg.InitialReserve) == "" {
		cfg.InitialReserve = "1000"
	}
	if strings.TrimSpace(cfg.Telemetry.ServiceName) == "" {
		cfg.Telemetry.ServiceName = "curvemintd"
	}
	if strings.TrimSpace(cfg.Telemetry.Environment) == "" {
		cfg.Telemetry.Environment = "local"
	}
	if cfg.Telemetry.SampleRatio <= 0 {
		cfg.Telemetry.SampleRatio = 1
	}
}

// Validate checks address encodings and numeric bounds before the daemon
// wires the engine.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if cfg.ReserveRatioPpm == 0 || cfg.ReserveRatioPpm > curve.MaxRatioPpm {
		return fmt.Errorf("config: ReserveRatioPpm must be within (0, %d]", curve.MaxRatioPpm)
	}
	if cfg.FounderPercentage > 100 {
		return fmt.Errorf("config: FounderPercentage must not exceed 100")
	}
	for field, value := range map[string]string{
		"AdminAddress":    cfg.AdminAddress,
		"FounderAddress":  cfg.FounderAddress,
		"VaultAddress":    cfg.VaultAddress,
		"DeployerAddress": cfg.DeployerAddress,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("config: %s is required", field)
		}
		if _, err := crypto.DecodeAddress(value); err != nil {
			return fmt.Errorf("config: invalid %s: %w", field, err)
		}
	}
	for field, value := range map[string]string{
		"InitialSupply":  cfg.InitialSupply,
		"InitialReserve": cfg.InitialReserve,
	} {
		if err := validateAmount(value); err != nil {
			return fmt.Errorf("config: invalid %s: %w", field, err)
		}
	}
	return nil
}

func validateAmount(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("amount must not be empty")
	}
	if strings.HasPrefix(trimmed, "-") {
		return fmt.Errorf("amount must not be negative")
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return fmt.Errorf("amount must be a base-10 integer")
		}
	}
	return nil
}

// createDefault creates and saves a default configuration file. A fresh
// keypair serves as admin, founder and deployer so a local node works out of
// the box; operators override the addresses before any real deployment. The
// generated key is persisted to an encrypted keystore beside the config.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	operator := key.PubKey().Address().String()

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	vaultKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		OperatorKeystorePath: keystorePath,
		AdminAddress:         operator,
		FounderAddress:       operator,
		DeployerAddress:      operator,
		VaultAddress:         vaultKey.PubKey().Address().String(),
	}
	applyDefaults(cfg)

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}
