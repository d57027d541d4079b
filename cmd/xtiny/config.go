package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kirsle/configdir"

	"xtiny/log"
	"xtiny/units"
)

// Config is the on-disk configuration. Command line flags override
// whatever the file provides.
type Config struct {
	Chip  ChipConfig  `toml:"chip"`
	Trace TraceConfig `toml:"trace"`
}

// ChipConfig describes the modeled part and its board: the main
// oscillator rate and whatever drives TOSC1.
type ChipConfig struct {
	MainHz  uint32 `toml:"main_hz"`
	Tosc1Hz uint32 `toml:"tosc1_hz"`
}

// TraceConfig holds the trace defaults.
type TraceConfig struct {
	Scenario string   `toml:"scenario"`
	For      duration `toml:"for"`
	Step     duration `toml:"step"`
}

// duration makes time.Duration a first-class toml value ("150ms").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

var configDir = sync.OnceValue(func() string {
	dir := configdir.LocalConfig("xtiny")
	if err := configdir.MakePath(dir); err != nil {
		log.ModMain.Fatalf("failed to create directory %s: %v", dir, err)
	}
	return dir
})

const cfgFilename = "config.toml"

// loadConfigOrDefault loads config.toml from the xtiny config
// directory, or provides a default one. On first run the defaults are
// written back so the file exists to edit.
func loadConfigOrDefault() Config {
	path := filepath.Join(configDir(), cfgFilename)
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		cfg = Config{}.withDefaults()
		if errors.Is(err, fs.ErrNotExist) {
			if werr := saveConfig(cfg); werr != nil {
				log.ModMain.Warnf("cannot write %s: %v", path, werr)
			}
		} else {
			log.ModMain.Warnf("cannot read %s: %v", path, err)
		}
		return cfg
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Chip.MainHz == 0 {
		c.Chip.MainHz = uint32(units.MHz(20))
	}
	if c.Chip.Tosc1Hz == 0 {
		c.Chip.Tosc1Hz = 32768
	}
	if c.Trace.Scenario == "" {
		c.Trace.Scenario = "blink"
	}
	if c.Trace.For.Duration == 0 {
		c.Trace.For.Duration = time.Second
	}
	if c.Trace.Step.Duration == 0 {
		c.Trace.Step.Duration = time.Microsecond
	}
	return c
}

// saveConfig into the xtiny config directory.
func saveConfig(cfg Config) error {
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(configDir(), cfgFilename), buf, 0644)
}
