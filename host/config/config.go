// Package config provides the tickmon host configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"monotick/host/serial"
	"monotick/monotonic"
	"monotick/peripheral"
)

const (
	defaultBaud        = 115200
	defaultReadTimeout = 100
	defaultLogLevel    = "NOTICE"
)

// Serial is the serial port configuration.
type Serial struct {
	// Device is the port to read sample frames from.
	Device string

	// Baud is the line rate; ignored by USB CDC devices.
	Baud int

	// ReadTimeoutMs bounds a single read, 0 blocks.
	ReadTimeoutMs int
}

func (sCfg *Serial) validate() error {
	if sCfg.Device == "" {
		return errors.New("config: Serial: Device is not set")
	}
	if sCfg.Baud <= 0 {
		sCfg.Baud = defaultBaud
	}
	if sCfg.ReadTimeoutMs < 0 {
		return fmt.Errorf("config: Serial: ReadTimeoutMs %d is negative", sCfg.ReadTimeoutMs)
	}
	return nil
}

// PortConfig converts to the serial package configuration.
func (sCfg *Serial) PortConfig() *serial.Config {
	return &serial.Config{
		Device:      sCfg.Device,
		Baud:        sCfg.Baud,
		ReadTimeout: sCfg.ReadTimeoutMs,
	}
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file, if omitted stdout will be used.
	File string

	// Level specifies the log level.
	Level string
}

func (lCfg *Logging) validate() error {
	lvl := strings.ToUpper(lCfg.Level)
	switch lvl {
	case "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG":
	case "":
		lvl = defaultLogLevel
	default:
		return fmt.Errorf("config: Logging: Level '%v' is invalid", lCfg.Level)
	}
	lCfg.Level = lvl // Force uppercase.
	return nil
}

// Source describes one clock source reported by the device.
type Source struct {
	// ID is the source id carried in each sample frame.
	ID uint8

	// Name is a label for log output; defaults to Chip/Timer.
	Name string

	// Chip and Timer select the peripheral, e.g. "stm32f051" and "TIM3".
	Chip  string
	Timer string

	// MaxGapTicks is the largest expected gap between two samples. Gaps
	// above it are logged as late; 0 disables the check.
	MaxGapTicks uint32

	timer peripheral.Timer
}

// Peripheral returns the timer resolved by FixupAndValidate.
func (s *Source) Peripheral() peripheral.Timer {
	return s.timer
}

func (s *Source) validate() error {
	t, err := peripheral.Lookup(s.Chip, s.Timer)
	if err != nil {
		return fmt.Errorf("config: Source %d: %w", s.ID, err)
	}
	s.timer = t
	if s.Name == "" {
		s.Name = t.Chip + "/" + t.Name
	}

	half := uint32(monotonic.HalfRange[uint16]())
	if t.Width == 32 {
		half = uint32(monotonic.HalfRange[uint32]())
	}
	if s.MaxGapTicks >= half {
		return fmt.Errorf("config: Source %d: MaxGapTicks %d exceeds half the %d-bit counter period", s.ID, s.MaxGapTicks, t.Width)
	}
	return nil
}

// Config is the top level tickmon configuration.
type Config struct {
	Serial  *Serial
	Logging *Logging
	Sources []*Source
}

// FixupAndValidate applies defaults to config entries and validates the
// supplied configuration.
func (cfg *Config) FixupAndValidate() error {
	if cfg.Serial == nil {
		return errors.New("config: No Serial block was present")
	}
	if cfg.Logging == nil {
		cfg.Logging = &Logging{}
	}
	if err := cfg.Serial.validate(); err != nil {
		return err
	}
	if err := cfg.Logging.validate(); err != nil {
		return err
	}

	if len(cfg.Sources) == 0 {
		return errors.New("config: No Sources were configured")
	}
	seen := make(map[uint8]bool)
	for _, s := range cfg.Sources {
		if seen[s.ID] {
			return fmt.Errorf("config: Source %d is defined twice", s.ID)
		}
		seen[s.ID] = true
		if err := s.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Source returns the source with the given id.
func (cfg *Config) Source(id uint8) (*Source, bool) {
	for _, s := range cfg.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Load parses and validates the provided buffer b as a config file body and
// returns the Config.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses and validates the provided file and returns the
// Config.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}
