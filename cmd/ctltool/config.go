package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ctlkit/ctlkit/pkg/ctl"
)

// limitsYAML is the on-disk shape of the decode-limits config.
type limitsYAML struct {
	MaxEntries  int    `yaml:"max_entries"`
	MaxDepth    int    `yaml:"max_depth"`
	EntryErrors string `yaml:"entry_errors"` // "fail" or "skip"
}

// loadDecodeOptions builds DecodeOptions from the --config file, or
// defaults when no file is given.
func loadDecodeOptions() (*ctl.DecodeOptions, error) {
	opts := &ctl.DecodeOptions{}
	if configPath == "" {
		return opts, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var limits limitsYAML
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	opts.MaxEntries = limits.MaxEntries
	opts.MaxDepth = limits.MaxDepth
	switch limits.EntryErrors {
	case "", "fail":
		opts.EntryErrors = ctl.EntryErrorsFail
	case "skip":
		opts.EntryErrors = ctl.EntryErrorsSkip
	default:
		return nil, fmt.Errorf("invalid entry_errors %q: want fail or skip", limits.EntryErrors)
	}
	return opts, nil
}

// decodeFile reads and decodes one trust-list file.
func decodeFile(path string) (*ctl.CTL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	opts, err := loadDecodeOptions()
	if err != nil {
		return nil, err
	}
	return ctl.Decode(data, opts)
}
