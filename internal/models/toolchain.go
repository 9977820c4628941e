package models

import (
	"fmt"
	"strings"
)

// OptimizationLevel selects the build profile of a session's toolchain.
type OptimizationLevel string

const (
	OptimizationDebug       OptimizationLevel = "debug"
	OptimizationRelease     OptimizationLevel = "release"
	OptimizationPerformance OptimizationLevel = "performance"
	OptimizationSize        OptimizationLevel = "size"
)

// ParseOptimization accepts an optimization level case-insensitively.
func ParseOptimization(s string) (OptimizationLevel, error) {
	o := OptimizationLevel(strings.ToLower(strings.TrimSpace(s)))
	switch o {
	case OptimizationDebug, OptimizationRelease, OptimizationPerformance, OptimizationSize:
		return o, nil
	}
	return "", fmt.Errorf("unknown optimization level %q", s)
}

// ToolchainConfig describes the build toolchain a session compiles with.
type ToolchainConfig struct {
	Version      string            `json:"version"`
	Edition      string            `json:"edition"`
	Target       string            `json:"target"`
	Features     []string          `json:"features"`
	WasmSupport  bool              `json:"wasmSupport"`
	Optimization OptimizationLevel `json:"optimization"`
}

// DefaultToolchain is used when a create request omits the toolchain.
func DefaultToolchain() ToolchainConfig {
	return ToolchainConfig{
		Version:      "1.75.0",
		Edition:      "2021",
		Target:       "stable",
		Features:     []string{"default"},
		WasmSupport:  true,
		Optimization: OptimizationRelease,
	}
}

// Clone returns a deep copy.
func (t ToolchainConfig) Clone() ToolchainConfig {
	out := t
	if t.Features != nil {
		out.Features = append([]string(nil), t.Features...)
	}
	return out
}
