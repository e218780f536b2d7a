package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Gateway describes how to reach the ledger gateway service that signs and
// submits transactions on our behalf.
type Gateway struct {
	Endpoint   string        `yaml:"endpoint"`
	ApiKey     string        `yaml:"apiKey"`
	SkipVerify bool          `yaml:"skipVerify,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

// SharedRef identifies a shared ledger object by id and the version at
// which it became shared.
type SharedRef struct {
	ID             string `yaml:"id"`
	InitialVersion uint64 `yaml:"initialVersion"`
}

// Contract pins the deployed metadata contract. These are deployment
// coordinates, not code constants: pointing the same binary at a different
// network is a config change, not a rebuild.
type Contract struct {
	Package     string    `yaml:"package"`
	Module      string    `yaml:"module"`
	BucketsRoot string    `yaml:"bucketsRoot"`
	Clock       SharedRef `yaml:"clock"`
	GasBudget   uint64    `yaml:"gasBudget,omitempty"`
}

// Walrus configures the blob substrate CLI invocation.
type Walrus struct {
	Binary string `yaml:"binary"`
}

type Config struct {
	Gateway  Gateway  `yaml:"gateway"`
	Contract Contract `yaml:"contract"`
	Walrus   Walrus   `yaml:"walrus"`
}

// Default returns a configuration pointed at the testnet deployment the
// project ships against. The contract coordinates match the published
// suis3 package and its bucket registry root.
func Default() *Config {
	return &Config{
		Gateway: Gateway{
			Endpoint: "https://gateway.suistorage.dev:443",
			Timeout:  30 * time.Second,
		},
		Contract: Contract{
			Package:     "0xaf4ce64ef7dad2b25ae3dc27165e7f7d238d046206c9a4f78dceea4cce8bd462",
			Module:      "suis3",
			BucketsRoot: "0xe3cf1909b8f9311fbfeb72ffd7f49cb30830abe5f16b7747394f970d6c2711c5",
			Clock:       SharedRef{ID: "0x6", InitialVersion: 1},
			GasBudget:   10_000_000,
		},
		Walrus: Walrus{
			Binary: "walrus",
		},
	}
}

// Load reads a yaml config file and validates it. Missing optional fields
// fall back to the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Gateway.Endpoint == "" {
		return errors.New("gateway endpoint cannot be empty")
	}
	if c.Contract.Package == "" {
		return errors.New("contract package cannot be empty")
	}
	if c.Contract.Module == "" {
		return errors.New("contract module cannot be empty")
	}
	if c.Contract.BucketsRoot == "" {
		return errors.New("contract bucketsRoot cannot be empty")
	}
	if c.Contract.Clock.ID == "" {
		return errors.New("contract clock id cannot be empty")
	}
	if c.Walrus.Binary == "" {
		return errors.New("walrus binary cannot be empty")
	}
	return nil
}
