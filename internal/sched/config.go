package sched

import (
	"fmt"
	"os"
	"time"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors config.yml
type Config struct {
	Horizon          float64   `yaml:"horizon"`           // 50 (by default)
	Sensors          []string  `yaml:"sensors"`           // [CSI, USB]; the first is primary
	MaxWait          float64   `yaml:"max_wait"`          // 2.0 (by default)
	PollInterval     float64   `yaml:"poll_interval"`     // 0.1 (by default)
	FairMode         FairMode  `yaml:"fair_mode"`         // poll (by default)
	MaxResubmissions int       `yaml:"max_resubmissions"` // 8 (by default), 0 = unbounded
	RealtimeMS       int       `yaml:"realtime_ms"`       // wall ms per simulated unit, 0 = as fast as possible
	TracePath        string    `yaml:"trace_path"`        // CSV status trace, empty = off
	Arrivals         []Arrival `yaml:"arrivals"`

	Tasks    []TaskSpec     `yaml:"tasks"` // static catalog used when metadata.url is empty
	Metadata MetadataConfig `yaml:"metadata"`
	Strategy StrategyConfig `yaml:"strategy"`
	Sink     SinkConfig     `yaml:"sink"`
	Log      LogConfig      `yaml:"log"`
}

// Arrival is one entry of the arrival plan.
type Arrival struct {
	At   float64 `yaml:"at"`
	Task TaskID  `yaml:"task"`
}

// TaskSpec describes a task inline in the configuration.
type TaskSpec struct {
	ID          TaskID  `yaml:"id"`
	Safety      string  `yaml:"safety"`
	Realtime    int     `yaml:"realtime"`
	Duration    float64 `yaml:"duration"`
	Description string  `yaml:"description"`
}

// Task converts the entry into a fully populated task.
func (ts TaskSpec) Task() *Task {
	return NewTask(ts.ID, ts.Safety, ts.Realtime, ts.Duration, ts.Description)
}

// MetadataConfig points at the task submodel elements.
type MetadataConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// StrategyConfig points at the strategy property. Fixed, when set, is used
// instead of a remote source.
type StrategyConfig struct {
	URL     string        `yaml:"url"`
	Fixed   string        `yaml:"fixed"`
	Timeout time.Duration `yaml:"timeout"`
}

// SinkConfig selects where completion records go.
type SinkConfig struct {
	MQTTBroker   string        `yaml:"mqtt_broker"` // tcp://host:1883, empty = off
	MQTTTopic    string        `yaml:"mqtt_topic"`
	MQTTClientID string        `yaml:"mqtt_client_id"`
	MQTTTimeout  time.Duration `yaml:"mqtt_timeout"`
	CSVPath      string        `yaml:"csv_path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig is used when no configuration file is given.
func DefaultConfig() Config {
	return Config{
		Horizon:          50,
		Sensors:          []string{"CSI", "USB"},
		MaxWait:          DefaultMaxWait,
		PollInterval:     DefaultPollInterval,
		FairMode:         FairPoll,
		MaxResubmissions: 8,
		Arrivals: []Arrival{
			{At: 0.0, Task: "Task1"},
			{At: 0.5, Task: "Task2"},
			{At: 1.5, Task: "Task3"},
			{At: 2.0, Task: "Task4"},
			{At: 3.0, Task: "Task5"},
		},
		Metadata: MetadataConfig{Timeout: 5 * time.Second},
		Strategy: StrategyConfig{Timeout: 5 * time.Second},
		Sink: SinkConfig{
			MQTTTopic:    "simulation/task/finished",
			MQTTClientID: "sensorsched",
			MQTTTimeout:  5 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads YAML and overrides defaults; empty path = defaults only
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.clamp()
	return cfg, cfg.Validate()
}

// clamp replaces out-of-range values with their defaults.
func (cfg *Config) clamp() {
	def := DefaultConfig()
	if cfg.Horizon <= 0 {
		cfg.Horizon = def.Horizon
	}
	if cfg.MaxWait < 0 {
		cfg.MaxWait = def.MaxWait
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.FairMode != FairPoll && cfg.FairMode != FairNotify {
		cfg.FairMode = def.FairMode
	}
	if cfg.MaxResubmissions < 0 {
		cfg.MaxResubmissions = def.MaxResubmissions
	}
	if cfg.RealtimeMS < 0 {
		cfg.RealtimeMS = 0
	}
}

// Validate reports configuration the scheduler cannot run with.
func (cfg Config) Validate() error {
	if len(cfg.Sensors) == 0 {
		return fmt.Errorf("config: at least one sensor is required")
	}
	seen := make(map[string]bool, len(cfg.Sensors))
	for _, s := range cfg.Sensors {
		if s == "" {
			return fmt.Errorf("config: empty sensor name")
		}
		if seen[s] {
			return fmt.Errorf("config: duplicate sensor %q", s)
		}
		seen[s] = true
	}
	for i, a := range cfg.Arrivals {
		if a.Task == "" {
			return fmt.Errorf("config: arrival %d has no task", i)
		}
		if a.At < 0 {
			return fmt.Errorf("config: arrival %d (%s) at negative time %v", i, a.Task, a.At)
		}
	}
	return nil
}
