package process

import (
	"fmt"
	"time"

	"github.com/kbukum/teashell/config"
	"github.com/kbukum/teashell/logger"
	"github.com/kbukum/teashell/validation"
)

const (
	defaultReadChunkSize = 32 * 1024
	defaultKillGrace     = 5 * time.Second

	// ConfigName is the config file base name and environment prefix used
	// by LoadConfig: teashell.yml and TEASHELL_* variables.
	ConfigName = "teashell"
)

// Config configures an Engine.
type Config struct {
	// Capture records stdout/stderr into the handle's buffers by default.
	Capture bool `yaml:"capture" mapstructure:"capture"`
	// Passthrough forwards output to the engine's passthrough writers by default.
	Passthrough bool `yaml:"passthrough" mapstructure:"passthrough"`
	// Timeout is the default invocation timeout. Zero means none.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	// KillSignal is sent by Terminate and when a timeout expires.
	KillSignal string `yaml:"kill_signal" mapstructure:"kill_signal" validate:"oneof=SIGTERM SIGKILL SIGINT SIGHUP SIGQUIT"`
	// KillGrace is how long to wait after KillSignal before SIGKILL.
	// Zero disables escalation.
	KillGrace time.Duration `yaml:"kill_grace" mapstructure:"kill_grace" validate:"gte=0"`
	// DrainTimeout bounds how long output may keep streaming after the
	// process exited, e.g. from a background child holding the pipe.
	// Zero waits indefinitely.
	DrainTimeout time.Duration `yaml:"drain_timeout" mapstructure:"drain_timeout" validate:"gte=0"`
	// ReadChunkSize is the pipe read buffer size per stream.
	ReadChunkSize int `yaml:"read_chunk_size" mapstructure:"read_chunk_size" validate:"min=512,max=1048576"`
	// ProcessGroup starts each child in its own process group and signals
	// the whole group.
	ProcessGroup bool `yaml:"process_group" mapstructure:"process_group"`
	// InheritEnv starts children with this process's environment.
	InheritEnv bool `yaml:"inherit_env" mapstructure:"inherit_env"`
	// SpawnAttempts is the number of tries for transient spawn failures.
	SpawnAttempts int `yaml:"spawn_attempts" mapstructure:"spawn_attempts" validate:"gte=1,lte=10"`
	// MaxProcesses caps concurrently running children. Zero means unlimited.
	MaxProcesses int `yaml:"max_processes" mapstructure:"max_processes" validate:"gte=0"`
	// MaxProcessWait is how long Spawn waits for a free slot when
	// MaxProcesses is reached. Zero fails immediately.
	MaxProcessWait time.Duration `yaml:"max_process_wait" mapstructure:"max_process_wait" validate:"gte=0"`

	// Logging configures the engine logger when none is injected.
	// Leaving Level empty disables engine logging.
	Logging logger.Config `yaml:"logging" mapstructure:"logging"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Capture:       true,
		KillSignal:    "SIGTERM",
		KillGrace:     defaultKillGrace,
		ReadChunkSize: defaultReadChunkSize,
		ProcessGroup:  true,
		InheritEnv:    true,
		SpawnAttempts: 3,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if c.Logging.Level != "" {
		if err := c.Logging.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return nil
}

// LoadConfig loads the engine configuration over DefaultConfig from an
// optional teashell.yml, an optional .env file and TEASHELL_* variables,
// then validates it.
func LoadConfig(opts ...config.LoaderOption) (Config, error) {
	cfg := DefaultConfig()
	if err := config.Load(ConfigName, &cfg, opts...); err != nil {
		return Config{}, err
	}
	if cfg.Logging.Level != "" {
		cfg.Logging.ApplyDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
