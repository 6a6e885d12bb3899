// Package simconfig loads the kernel's external configuration (spec §6),
// generalizing the teacher's reinforcement.FromYaml: spf13/viper reading a
// YAML file into a typed struct.
package simconfig

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"gridlock/cell"
)

// WorkGroupConfig is one entry of the workGroups list: a named work group's
// worker count and tick stride.
type WorkGroupConfig struct {
	Name       string `mapstructure:"name"`
	NumWorkers int    `mapstructure:"numWorkers"`
	TickStep   int64  `mapstructure:"tickStep"`
}

// Config is the full set of inputs spec §6 names.
type Config struct {
	BaseGranMS    int64             `mapstructure:"baseGranMS"`
	SimStartTime  time.Time         `mapstructure:"-"`
	SimStartRaw   string            `mapstructure:"simStartTime"`
	EndTick       int64             `mapstructure:"endTick"`
	WorkGroups    []WorkGroupConfig `mapstructure:"workGroups"`
	MutexStrategy string            `mapstructure:"mutexStrategy"`
	RunSeed       int64             `mapstructure:"runSeed"`
	DashboardAddr string            `mapstructure:"dashboardAddr"`
}

// CellStrategy converts MutexStrategy ("buffered"|"locked") into a
// cell.MutexStrategy, per spec §9 Design Note (a) vs (b).
func (c *Config) CellStrategy() (cell.MutexStrategy, error) {
	switch c.MutexStrategy {
	case "", "buffered":
		return cell.Buffered, nil
	case "locked":
		return cell.Locked, nil
	default:
		return 0, fmt.Errorf("simconfig: unknown mutexStrategy %q", c.MutexStrategy)
	}
}

// FromYaml loads Config from a YAML file at path, mirroring the teacher's
// reinforcement.FromYaml: viper.SetConfigFile + Unmarshal, wrapped in a
// sentinel error on failure.
func FromYaml(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("simconfig: reading %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("simconfig: unmarshalling %s: %w", path, err)
	}

	if cfg.SimStartRaw != "" {
		t, err := time.Parse(time.RFC3339, cfg.SimStartRaw)
		if err != nil {
			return nil, fmt.Errorf("simconfig: parsing simStartTime %q: %w", cfg.SimStartRaw, err)
		}
		cfg.SimStartTime = t
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants spec §6/§7 require before the kernel
// starts — failures here map to exit code 1 (spec §7 configuration-error
// class).
func (c *Config) Validate() error {
	if c.BaseGranMS <= 0 {
		return fmt.Errorf("simconfig: baseGranMS must be positive, got %d", c.BaseGranMS)
	}
	if c.EndTick <= 0 {
		return fmt.Errorf("simconfig: endTick must be positive, got %d", c.EndTick)
	}
	if len(c.WorkGroups) == 0 {
		return fmt.Errorf("simconfig: at least one work group is required")
	}
	for _, wg := range c.WorkGroups {
		if wg.NumWorkers <= 0 {
			return fmt.Errorf("simconfig: work group %q needs numWorkers > 0", wg.Name)
		}
		if wg.TickStep <= 0 {
			return fmt.Errorf("simconfig: work group %q needs tickStep > 0", wg.Name)
		}
	}
	if _, err := c.CellStrategy(); err != nil {
		return err
	}
	return nil
}

// DumpYAML re-marshals the effective config back to YAML, the same
// remarshal-for-logging trick the teacher's reinforcement.FromYaml used to
// echo the resolved algorithm config before a run started. Used by the
// kernel's startup log line so an operator can see defaults viper filled in
// without re-reading the source file.
func (c *Config) DumpYAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("simconfig: marshalling effective config: %w", err)
	}
	return string(out), nil
}
