// Package config loads and validates pixelcast.json, the process-wide
// configuration: the metrics listener, optional snapshot archiving and one
// block per pipeline. A top-level "defaults" block seeds every pipeline
// entry, so shared tuning is written once.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pixelcast-dev/pixelcast/internal/errors"
	"github.com/pixelcast-dev/pixelcast/pkg/control"
	"github.com/pixelcast-dev/pixelcast/pkg/frame"
	"github.com/pixelcast-dev/pixelcast/pkg/pipeline"
)

// ConfigFileName is the default configuration file name.
const ConfigFileName = "pixelcast.json"

// Config is the parsed process configuration.
type Config struct {
	// MetricsAddress is where the HTTP side (metrics, health, debug
	// endpoints) listens.
	MetricsAddress string `json:"metrics_address,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// Archive enables S3 snapshot archiving when present.
	Archive *ArchiveConfig `json:"archive,omitempty"`

	// Defaults seeds every pipeline entry before its own fields apply.
	Defaults json.RawMessage `json:"defaults,omitempty"`

	// PipelineBlocks are the raw per-pipeline entries; Pipelines holds
	// the merged result.
	PipelineBlocks []json.RawMessage `json:"pipelines"`
	Pipelines      []Pipeline        `json:"-"`

	configPath string
}

// ArchiveConfig configures the S3 snapshot store.
type ArchiveConfig struct {
	Bucket   string `json:"bucket"`
	Prefix   string `json:"prefix,omitempty"`
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// Pipeline is one display stream.
type Pipeline struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`

	MaxChunkData         int  `json:"max_chunk_data,omitempty"`
	GenerationIntervalMS int  `json:"generation_interval_ms,omitempty"`
	QueueCapacity        int  `json:"queue_capacity,omitempty"`
	LowWaterMark         int  `json:"low_water_mark,omitempty"`
	SendTimeoutMS        int  `json:"send_timeout_ms,omitempty"`
	BlockSize            int  `json:"block_size,omitempty"`
	Dither               bool `json:"dither,omitempty"`

	Gamma   float64    `json:"gamma,omitempty"`
	WBScale [3]float64 `json:"wb_scale,omitempty"`

	Controller ControllerConfig `json:"controller,omitempty"`
	Source     SourceConfig     `json:"source"`
}

// ControllerConfig mirrors control.Config with JSON tags.
type ControllerConfig struct {
	Min         int     `json:"min,omitempty"`
	Max         int     `json:"max,omitempty"`
	StepUp      int     `json:"step_up,omitempty"`
	StepDown    int     `json:"step_down,omitempty"`
	TargetFPS   float64 `json:"target_fps,omitempty"`
	Hysteresis  float64 `json:"hysteresis,omitempty"`
	HistorySize int     `json:"history_size,omitempty"`
}

// SourceConfig selects the frame generator for a pipeline.
type SourceConfig struct {
	Kind    string            `json:"kind"`
	Options map[string]string `json:"options,omitempty"`
}

// Load reads ConfigFileName from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from path, merges defaults into every
// pipeline entry and validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E101").
				WithDetail("no " + ConfigFileName + " in " + filepath.Dir(path))
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E102").Wrap(err)
	}
	cfg.configPath = path

	cfg.Pipelines = make([]Pipeline, len(cfg.PipelineBlocks))
	for i, raw := range cfg.PipelineBlocks {
		p := defaultPipeline()
		// Defaults first, then the entry's own fields on top. Unmarshal
		// only touches fields the JSON names, so this layers correctly.
		if len(cfg.Defaults) > 0 {
			if err := json.Unmarshal(cfg.Defaults, &p); err != nil {
				return nil, errors.New("E102").WithDetail("in defaults block").Wrap(err)
			}
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errors.New("E102").Wrap(err)
		}
		cfg.Pipelines[i] = p
	}

	if cfg.MetricsAddress == "" {
		cfg.MetricsAddress = ":9090"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultPipeline() Pipeline {
	d := pipeline.DefaultConfig()
	c := control.DefaultConfig()
	return Pipeline{
		MaxChunkData:         d.MaxChunkData,
		GenerationIntervalMS: int(d.GenerationInterval / time.Millisecond),
		QueueCapacity:        d.QueueCapacity,
		LowWaterMark:         d.LowWaterMark,
		SendTimeoutMS:        int(d.SendTimeout / time.Millisecond),
		BlockSize:            d.BlockSize,
		Dither:               d.Dither,
		Gamma:                1.0,
		WBScale:              [3]float64{1, 1, 1},
		Controller: ControllerConfig{
			Min:         c.Min,
			Max:         c.Max,
			StepUp:      c.StepUp,
			StepDown:    c.StepDown,
			TargetFPS:   c.TargetFPS,
			Hysteresis:  c.Hysteresis,
			HistorySize: c.HistorySize,
		},
		Source: SourceConfig{Kind: "pattern"},
	}
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if len(c.Pipelines) == 0 {
		return errors.New("E103").WithDetail("no pipelines configured")
	}
	names := make(map[string]bool, len(c.Pipelines))
	addrs := make(map[string]bool, len(c.Pipelines))
	for i, p := range c.Pipelines {
		if p.Name == "" {
			return errors.New("E103").WithDetail(fmt.Sprintf("pipeline %d has no name", i))
		}
		if names[p.Name] {
			return errors.New("E103").WithDetail("duplicate pipeline name " + p.Name)
		}
		names[p.Name] = true
		if p.Address == "" {
			return errors.New("E103").WithDetail("pipeline " + p.Name + " has no address")
		}
		if addrs[p.Address] {
			return errors.New("E103").WithDetail("duplicate address " + p.Address)
		}
		addrs[p.Address] = true
		if p.Width <= 0 || p.Height <= 0 {
			return errors.New("E103").WithDetail("pipeline " + p.Name + " has no resolution")
		}
		ctl := p.Controller
		if ctl.Min < 0 || ctl.Max < ctl.Min || ctl.StepUp <= 0 || ctl.StepDown <= 0 {
			return errors.New("E104").WithDetail("pipeline " + p.Name)
		}
		if p.Source.Kind == "" {
			return errors.New("E201").WithDetail("pipeline " + p.Name + " has no source kind")
		}
	}
	if c.Archive != nil && c.Archive.Bucket == "" {
		return errors.New("E105")
	}
	return nil
}

// PipelineConfig converts the entry into the pipeline package's form.
func (p Pipeline) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Name:               p.Name,
		Address:            p.Address,
		Width:              p.Width,
		Height:             p.Height,
		MaxChunkData:       p.MaxChunkData,
		GenerationInterval: time.Duration(p.GenerationIntervalMS) * time.Millisecond,
		QueueCapacity:      p.QueueCapacity,
		LowWaterMark:       p.LowWaterMark,
		SendTimeout:        time.Duration(p.SendTimeoutMS) * time.Millisecond,
		BlockSize:          p.BlockSize,
		Controller: control.Config{
			Min:         p.Controller.Min,
			Max:         p.Controller.Max,
			StepUp:      p.Controller.StepUp,
			StepDown:    p.Controller.StepDown,
			TargetFPS:   p.Controller.TargetFPS,
			Hysteresis:  p.Controller.Hysteresis,
			HistorySize: p.Controller.HistorySize,
		},
		Correction: frame.Correction{Gamma: p.Gamma, WBScale: p.WBScale},
		Dither:     p.Dither,
	}
}

// Path returns where the configuration was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// SaveTo writes the configuration as indented JSON.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E102").Wrap(err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Newf(errors.CategoryConfig, "write %s: %v", path, err)
	}
	c.configPath = path
	return nil
}
