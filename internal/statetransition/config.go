package statetransition

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config selects how strictly optional header fields are checked. The zero
// value and DefaultConfig accept blocks without a seal, without offenders,
// from the future and with epoch marks anywhere.
type Config struct {
	Header HeaderConfig `toml:"header"`
	Log    LogConfig    `toml:"log"`
}

type HeaderConfig struct {
	RequireSeal          bool `toml:"require_seal"`           // empty seal is InvalidSignature
	RequireOffenders     bool `toml:"require_offenders"`      // empty offenders mark is InvalidBlockStructure
	CheckTimeliness      bool `toml:"check_timeliness"`       // slot after the wall clock slot is InvalidSlot
	RequireEpochBoundary bool `toml:"require_epoch_boundary"` // epoch mark outside the first block of an epoch is InvalidBlockStructure
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config %q: unknown keys %v", path, undecoded)
	}
	return cfg, nil
}
