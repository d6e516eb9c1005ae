package log

import (
	"fmt"
	"os"
	"strings"
)

// Config defines logging configuration.
type Config struct {
	// Level sets the minimum log level
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format sets the output format (json, text)
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// File, when set, receives log entries instead of stderr
	File string `json:"file" yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to entries
	EnableCaller bool `json:"enable_caller" yaml:"enable_caller" mapstructure:"enable_caller"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "text",
	}
}

// ApplyConfig creates a logger from a configuration.
func ApplyConfig(config *Config) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	options := []LoggerOption{WithLevel(level)}

	switch strings.ToLower(config.Format) {
	case "json":
		options = append(options, WithFormatter(&JSONFormatter{}))
	case "text", "":
		formatter := NewTextFormatter()
		formatter.DisableColors = config.File != "" || os.Getenv("NO_COLOR") != ""
		options = append(options, WithFormatter(formatter))
	default:
		return nil, fmt.Errorf("invalid log format: %s", config.Format)
	}

	if config.File != "" {
		options = append(options, WithOutput(NewFileOutput(os.ExpandEnv(config.File))))
	}

	if config.EnableCaller {
		options = append(options, WithCaller())
	}

	return NewLogger(options...), nil
}
