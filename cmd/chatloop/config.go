package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const envConfigPath = "CHATLOOP_CONFIG"

// Config represents the chatloop configuration file
// (~/.config/chatloop/config.yaml). Numeric fields are pointers so an
// explicit zero can be told apart from "not set".
type Config struct {
	Model     string `yaml:"model"`
	ModelsDir string `yaml:"models_dir"`
	Backend   string `yaml:"backend"`
	LibPath   string `yaml:"lib_path"`

	ContextSize *int64 `yaml:"ctx_size"`
	GPULayers   *int64 `yaml:"gpu_layers"`
	NPredict    *int64 `yaml:"n_predict"`
	System      string `yaml:"system"`

	// Sampling defaults
	Temperature      *float64 `yaml:"temperature"`
	TopK             *int64   `yaml:"top_k"`
	TopP             *float64 `yaml:"top_p"`
	RepeatLastN      *int64   `yaml:"repeat_last_n"`
	RepeatPenalty    *float64 `yaml:"repeat_penalty"`
	FrequencyPenalty *float64 `yaml:"frequency_penalty"`
	PresencePenalty  *float64 `yaml:"presence_penalty"`
	Seed             *int64   `yaml:"seed"`

	// Output
	StreamMode string `yaml:"stream_mode"`
	Raw        *bool  `yaml:"raw"`
	Transcript string `yaml:"transcript"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
	LogFile    string `yaml:"log_file"`
}

func configPath() string {
	if p := os.Getenv(envConfigPath); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "chatloop", "config.yaml")
}

// LoadConfig reads the config file. A missing file yields a zero Config.
func LoadConfig() (Config, error) {
	path := configPath()
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyChatConfig applies config file defaults to the chat options when
// the corresponding flag was not set on the command line.
func applyChatConfig(c *cli.Command, cfg Config, o *chatOptions) {
	setString := func(flag, v string, dst *string) {
		if v != "" && !c.IsSet(flag) {
			*dst = v
		}
	}
	setInt := func(flag string, v *int64, dst *int64) {
		if v != nil && !c.IsSet(flag) {
			*dst = *v
		}
	}
	setFloat := func(flag string, v *float64, dst *float64) {
		if v != nil && !c.IsSet(flag) {
			*dst = *v
		}
	}

	setString("model", cfg.Model, &o.model)
	setString("models-path", cfg.ModelsDir, &o.modelsPath)
	setString("backend", cfg.Backend, &o.backend)
	setString("lib-path", cfg.LibPath, &o.libPath)
	setString("system", cfg.System, &o.system)
	setString("stream-mode", cfg.StreamMode, &o.streamMode)
	setString("transcript", cfg.Transcript, &o.transcript)
	setString("log-level", cfg.LogLevel, &o.logLevel)
	setString("log-format", cfg.LogFormat, &o.logFormat)
	setString("log-file", cfg.LogFile, &o.logFile)

	setInt("ctx-size", cfg.ContextSize, &o.ctxSize)
	setInt("gpu-layers", cfg.GPULayers, &o.gpuLayers)
	setInt("n-predict", cfg.NPredict, &o.nPredict)
	setInt("top-k", cfg.TopK, &o.topK)
	setInt("repeat-last-n", cfg.RepeatLastN, &o.repeatLastN)
	setInt("seed", cfg.Seed, &o.seed)

	setFloat("temp", cfg.Temperature, &o.temp)
	setFloat("top-p", cfg.TopP, &o.topP)
	setFloat("repeat-penalty", cfg.RepeatPenalty, &o.repeatPenalty)
	setFloat("frequency-penalty", cfg.FrequencyPenalty, &o.frequencyPenalty)
	setFloat("presence-penalty", cfg.PresencePenalty, &o.presencePenalty)

	if cfg.Raw != nil && !c.IsSet("raw") {
		o.raw = *cfg.Raw
	}
}
