package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Duration time.Duration

func (d Duration) ToDuration() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		*d = 0
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}

	// allow: "500ms", "2s", or integer seconds
	switch value.Tag {
	case "!!int":
		i, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	case "!!str":
		if value.Value == "" {
			*d = 0
			return nil
		}
		if dur, err := time.ParseDuration(value.Value); err == nil {
			*d = Duration(dur)
			return nil
		}
		if i, err := strconv.ParseInt(value.Value, 10, 64); err == nil {
			*d = Duration(time.Duration(i) * time.Second)
			return nil
		}
		return fmt.Errorf("invalid duration: %q", value.Value)
	default:
		if dur, err := time.ParseDuration(value.Value); err == nil {
			*d = Duration(dur)
			return nil
		}
		return fmt.Errorf("invalid duration: %q", value.Value)
	}
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Mapping MappingConfig `yaml:"mapping"`
	Player  PlayerConfig  `yaml:"player"`
	Input   InputConfig   `yaml:"input"`
	UI      UIConfig      `yaml:"ui"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Bind              string   `yaml:"bind"`
	Port              int      `yaml:"port"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
}

type MappingConfig struct {
	Path string `yaml:"path"` // .json or .yaml document with a "mappings" object
}

type PlayerConfig struct {
	Command     string   `yaml:"command"` // empty = auto-detect
	Args        []string `yaml:"args"`    // replaces the command's default flags
	StopTimeout Duration `yaml:"stop_timeout"`
}

type InputConfig struct {
	KeepFocus bool `yaml:"keep_focus"`
	Stdin     bool `yaml:"stdin"` // read scanner lines from the terminal
}

type UIConfig struct {
	Title  string            `yaml:"title"`
	Labels map[string]string `yaml:"labels"` // idle / loading / playing
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Enabled:           true,
			Bind:              "127.0.0.1",
			Port:              8092,
			ReadHeaderTimeout: Duration(5 * time.Second),
		},
		Mapping: MappingConfig{
			Path: "config.json",
		},
		Player: PlayerConfig{
			StopTimeout: Duration(time.Second),
		},
		Input: InputConfig{
			KeepFocus: true,
		},
		UI: UIConfig{
			Title: "Barcode Audio Kiosk",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path on top of Default. A missing file is not an error: the
// kiosk runs on defaults plus environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return cfg, err
		}
	}

	applyEnv(&cfg)

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8092
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = "127.0.0.1"
	}
	if cfg.Server.ReadHeaderTimeout.ToDuration() <= 0 {
		cfg.Server.ReadHeaderTimeout = Duration(5 * time.Second)
	}
	if strings.TrimSpace(cfg.Mapping.Path) == "" {
		cfg.Mapping.Path = "config.json"
	}
	if cfg.Player.StopTimeout.ToDuration() <= 0 {
		cfg.Player.StopTimeout = Duration(time.Second)
	}
	if cfg.UI.Title == "" {
		cfg.UI.Title = "Barcode Audio Kiosk"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if !cfg.Server.Enabled && !cfg.Input.Stdin {
		// nothing would ever reach the pipeline
		cfg.Input.Stdin = true
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("KIOSK_MAPPING")); v != "" {
		cfg.Mapping.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("KIOSK_PLAYER")); v != "" {
		cfg.Player.Command = v
	}
	if v := strings.TrimSpace(os.Getenv("KIOSK_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("KIOSK_PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
}
