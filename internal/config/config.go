// Package config resolves runtime configuration from compiled defaults, an
// optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "EMOTEXT"

// Config stores runtime configuration.
type Config struct {
	Deepgram   DeepgramConfig   `mapstructure:"deepgram" yaml:"deepgram"`
	Audio      AudioConfig      `mapstructure:"audio" yaml:"audio"`
	Rules      RulesConfig      `mapstructure:"rules" yaml:"rules"`
	Speech     SpeechConfig     `mapstructure:"speech" yaml:"speech"`
	Expression ExpressionConfig `mapstructure:"expression" yaml:"expression"`
	Vision     VisionConfig     `mapstructure:"vision" yaml:"vision"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"file,omitempty"`
}

type DeepgramConfig struct {
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	APIBaseURL string `mapstructure:"api_base" yaml:"api_base"`
	Model      string `mapstructure:"model" yaml:"model"`
	Language   string `mapstructure:"language" yaml:"language"`
}

// Audio backends.
const (
	AudioBackendFFMPEG = "ffmpeg"
	AudioBackendPulse  = "pulse"
)

type AudioConfig struct {
	Backend         string `mapstructure:"backend" yaml:"backend"`
	RecorderCommand string `mapstructure:"recorder_command" yaml:"recorder_command"`
	InputFormat     string `mapstructure:"input_format" yaml:"input_format"`
	InputDevice     string `mapstructure:"input_device" yaml:"input_device"`
	SampleRate      int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels        int    `mapstructure:"channels" yaml:"channels"`
	ChunkSize       int    `mapstructure:"chunk_size" yaml:"chunk_size"`
}

type RulesConfig struct {
	Path           string `mapstructure:"path" yaml:"path"`
	IterationLimit int    `mapstructure:"iteration_limit" yaml:"iteration_limit"`
	Watch          bool   `mapstructure:"watch" yaml:"watch"`
}

type SpeechConfig struct {
	KeepAliveInterval time.Duration `mapstructure:"keepalive_interval" yaml:"keepalive_interval"`
	CaptionTimeout    time.Duration `mapstructure:"caption_timeout" yaml:"caption_timeout"`
	CloseGrace        time.Duration `mapstructure:"close_grace" yaml:"close_grace"`
}

type ExpressionConfig struct {
	Window        time.Duration `mapstructure:"window" yaml:"window"`
	MinConfidence float64       `mapstructure:"min_confidence" yaml:"min_confidence"`
}

type VisionConfig struct {
	ModelsDir        string        `mapstructure:"models_dir" yaml:"models_dir"`
	SidecarURL       string        `mapstructure:"sidecar_url" yaml:"sidecar_url"`
	SidecarReconnect time.Duration `mapstructure:"sidecar_reconnect" yaml:"sidecar_reconnect"`
}

type LoggingConfig struct {
	Dir     string `mapstructure:"dir" yaml:"dir"`
	Level   string `mapstructure:"level" yaml:"level"`
	Console bool   `mapstructure:"console" yaml:"console"`
}

type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// Load resolves configuration. Values come from, in increasing precedence:
// compiled defaults, ~/.config/emotext/config.yaml (or EMOTEXT_CONFIG), and
// EMOTEXT_* environment variables. DEEPGRAM_API_KEY is honored as well.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	v := viper.New()
	setDefaults(v, home)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("deepgram.api_key", envPrefix+"_DEEPGRAM_API_KEY", "DEEPGRAM_API_KEY")
	_ = v.BindEnv("deepgram.api_base", envPrefix+"_DEEPGRAM_API_BASE", "DEEPGRAM_API_BASE")

	if explicit := strings.TrimSpace(os.Getenv(envPrefix + "_CONFIG")); explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(home, ".config", "emotext"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	normalize(&cfg, home)
	switch cfg.Audio.Backend {
	case AudioBackendFFMPEG, AudioBackendPulse:
	default:
		return Config{}, fmt.Errorf("invalid configuration: unknown audio backend %q", cfg.Audio.Backend)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("deepgram.api_key", "")
	v.SetDefault("deepgram.api_base", "https://api.deepgram.com/v1")
	v.SetDefault("deepgram.model", "nova-2")
	v.SetDefault("deepgram.language", "")

	v.SetDefault("audio.backend", AudioBackendFFMPEG)
	v.SetDefault("audio.recorder_command", "ffmpeg")
	v.SetDefault("audio.input_format", "pulse")
	v.SetDefault("audio.input_device", "default")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.chunk_size", 4096)

	v.SetDefault("rules.path", "")
	v.SetDefault("rules.iteration_limit", 30)
	v.SetDefault("rules.watch", true)

	v.SetDefault("speech.keepalive_interval", 10*time.Second)
	v.SetDefault("speech.caption_timeout", 3*time.Second)
	v.SetDefault("speech.close_grace", 4*time.Second)

	v.SetDefault("expression.window", 250*time.Millisecond)
	v.SetDefault("expression.min_confidence", 0.5)

	v.SetDefault("vision.models_dir", filepath.Join(home, ".local", "share", "emotext", "models"))
	v.SetDefault("vision.sidecar_url", "")
	v.SetDefault("vision.sidecar_reconnect", 2*time.Second)

	v.SetDefault("logging.dir", filepath.Join(home, ".local", "state", "emotext", "logs"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)

	v.SetDefault("metrics.listen_addr", "")
}

func normalize(cfg *Config, home string) {
	cfg.Deepgram.APIKey = strings.TrimSpace(cfg.Deepgram.APIKey)
	cfg.Audio.InputDevice = firstNonEmpty(cfg.Audio.InputDevice, "default")
	cfg.Audio.Backend = strings.ToLower(firstNonEmpty(cfg.Audio.Backend, AudioBackendFFMPEG))

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if strings.TrimSpace(cfg.Rules.Path) == "" {
		cfg.Rules.Path = filepath.Join(home, ".config", "emotext", "substitutions.rules")
	}
	if cfg.Speech.KeepAliveInterval <= 0 {
		cfg.Speech.KeepAliveInterval = 10 * time.Second
	}
	if cfg.Speech.CaptionTimeout <= 0 {
		cfg.Speech.CaptionTimeout = 3 * time.Second
	}
	if cfg.Speech.CloseGrace <= 0 {
		cfg.Speech.CloseGrace = 4 * time.Second
	}
	if cfg.Expression.Window <= 0 {
		cfg.Expression.Window = 250 * time.Millisecond
	}
	if cfg.Expression.MinConfidence < 0 || cfg.Expression.MinConfidence > 1 {
		cfg.Expression.MinConfidence = 0.5
	}
	if cfg.Vision.SidecarReconnect <= 0 {
		cfg.Vision.SidecarReconnect = 2 * time.Second
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
