package heap

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Default space capacities, in bytes.
const (
	DefaultEdenBytes = 1 << 20  // 1 MiB
	DefaultSemiBytes = 4 << 20  // 4 MiB, from-space and to-space each
	DefaultOldBytes  = 16 << 20 // 16 MiB, initial
)

// Config carries the heap's tunable space sizes and debug behavior.
type Config struct {
	EdenBytes uint32 `toml:"eden_bytes"`
	FromBytes uint32 `toml:"from_bytes"`
	ToBytes   uint32 `toml:"to_bytes"`
	OldBytes  uint32 `toml:"old_bytes"`

	// Debug, when set, fills freshly bump-allocated memory with a fixed
	// scrub pattern so that reads of uninitialized payload words are
	// detectable rather than silently returning zero values.
	Debug bool `toml:"debug"`
}

// DefaultConfig returns the canonical three-space generation shape sized
// per the default budget: 1 MiB eden, 4 MiB from/to, 16 MiB old.
func DefaultConfig() Config {
	return Config{
		EdenBytes: DefaultEdenBytes,
		FromBytes: DefaultSemiBytes,
		ToBytes:   DefaultSemiBytes,
		OldBytes:  DefaultOldBytes,
	}
}

// tomlConfig is the on-disk shape of a zigself.toml heap section:
//
//	[heap]
//	eden_bytes = 1048576
//	from_bytes = 4194304
//	to_bytes   = 4194304
//	old_bytes  = 16777216
//	debug      = false
type tomlConfig struct {
	Heap Config `toml:"heap"`
}

// LoadConfig reads heap sizing from a TOML file, defaulting any field the
// file leaves unset (or omits entirely) to DefaultConfig's value.
func LoadConfig(path string) (Config, error) {
	cfg := tomlConfig{Heap: DefaultConfig()}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	return cfg.Heap, nil
}

func (c Config) validate() error {
	for _, pair := range []struct {
		name string
		v    uint32
	}{
		{"eden_bytes", c.EdenBytes},
		{"from_bytes", c.FromBytes},
		{"to_bytes", c.ToBytes},
		{"old_bytes", c.OldBytes},
	} {
		if pair.v == 0 || pair.v%wordSizeBytes != 0 {
			return fmt.Errorf("heap config: %s must be a positive multiple of %d, got %d", pair.name, wordSizeBytes, pair.v)
		}
	}
	if c.FromBytes != c.ToBytes {
		return fmt.Errorf("heap config: from_bytes (%d) and to_bytes (%d) must match: a scavenge target must have identical capacity", c.FromBytes, c.ToBytes)
	}
	return nil
}
