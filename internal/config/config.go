// Package config loads animegan-api settings from a YAML file, a .env file
// and the environment, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Brownie44l1/animegan-api/internal/model"
	"github.com/Brownie44l1/animegan-api/internal/tensor"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Inference InferenceConfig `yaml:"inference"`
	Image     ImageConfig     `yaml:"image"`
	Output    OutputConfig    `yaml:"output"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Port           string `yaml:"port"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// InferenceConfig describes the model artifact and runtime
type InferenceConfig struct {
	LibraryPath   string `yaml:"library_path"`
	ModelFilename string `yaml:"model_filename"`
	InputName     string `yaml:"input_name"`
	Threads       int    `yaml:"threads"`
	ReuseSessions bool   `yaml:"reuse_sessions"`
}

// ImageConfig is the network's image contract
type ImageConfig struct {
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Channels int    `yaml:"channels"`
	Filter   string `yaml:"filter"`
}

// OutputConfig says where the model lives and results are written.
type OutputConfig struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration with default values
func Default() *Config {
	contract := model.DefaultContract()
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			MaxUploadBytes: 32 << 20,
		},
		Inference: InferenceConfig{
			ModelFilename: contract.ModelFilename,
			InputName:     contract.InputName,
			Threads:       contract.Threads,
		},
		Image: ImageConfig{
			Width:    contract.Shape.Width,
			Height:   contract.Shape.Height,
			Channels: contract.Shape.Channels,
			Filter:   tensor.FilterCatmullRom,
		},
		Output: OutputConfig{
			Dir:    "./data",
			Prefix: "anime_gan_output",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), a .env file in the working directory and the environment.
func Load(path string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("PORT", &c.Server.Port)
	setString("ANIMEGAN_DIR", &c.Output.Dir)
	setString("ONNXRUNTIME_LIB", &c.Inference.LibraryPath)
	setString("ANIMEGAN_FILTER", &c.Image.Filter)
	setString("LOG_LEVEL", &c.Log.Level)

	if v := os.Getenv("ANIMEGAN_THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ANIMEGAN_THREADS: %w", err)
		}
		c.Inference.Threads = n
	}
	if v := os.Getenv("ANIMEGAN_REUSE_SESSIONS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ANIMEGAN_REUSE_SESSIONS: %w", err)
		}
		c.Inference.ReuseSessions = b
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	if c.Output.Prefix == "" {
		return fmt.Errorf("output.prefix is required")
	}
	if _, err := tensor.NewResampler(c.Image.Filter); err != nil {
		return fmt.Errorf("image.filter: %w", err)
	}
	if err := c.Contract().Validate(); err != nil {
		return fmt.Errorf("inference: %w", err)
	}
	return nil
}

// Contract returns the model contract described by the configuration.
func (c *Config) Contract() model.Contract {
	return model.Contract{
		ModelFilename: c.Inference.ModelFilename,
		InputName:     c.Inference.InputName,
		Threads:       c.Inference.Threads,
		Shape: tensor.Shape{
			Channels: c.Image.Channels,
			Height:   c.Image.Height,
			Width:    c.Image.Width,
		},
	}
}

// EngineOptions returns the runtime options for the ORT engine.
func (c *Config) EngineOptions() model.Options {
	return model.Options{
		LibraryPath:   c.Inference.LibraryPath,
		ReuseSessions: c.Inference.ReuseSessions,
	}
}
