// Package config loads the driver's external configuration (§6
// Environment): decoder kind, CPU string, debug/IR-log flags, and the
// object-cache root. No pack repo's own config format was a closer
// fit than plain YAML, the pack's most common structured-config idiom
// outside the teacher.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cellcore/ppuexec/ppu"
)

// Config is the decoded form of the external configuration collaborator
// (§6 "Configuration read from an external collaborator (values
// consumed: decoder kind..., CPU string, enable-debug flag, enable-IR-log
// flag, cache path)").
type Config struct {
	Decoder   ppu.DecoderKind `yaml:"decoder"`
	CPU       string          `yaml:"cpu"`
	Debug     bool            `yaml:"debug"`
	IRLog     bool            `yaml:"ir_log"`
	CachePath string          `yaml:"cache_path"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Decoder:   ppu.DecoderFast,
		CPU:       "cell-ppu",
		CachePath: "ppuexec-cache",
	}
}

// Load reads and decodes a YAML configuration file at path, starting
// from Default() so a partial file only overrides the fields it names.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects a decoder kind outside the three named in §6 and an
// empty cache path.
func (c Config) Validate() error {
	switch c.Decoder {
	case ppu.DecoderPrecise, ppu.DecoderFast, ppu.DecoderLLVM:
	default:
		return fmt.Errorf("config: unknown decoder kind %q", c.Decoder)
	}
	if c.CachePath == "" {
		return fmt.Errorf("config: cache_path must not be empty")
	}
	return nil
}
