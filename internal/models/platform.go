package models

import (
	"encoding/json"
	"strings"
)

// PlatformType enumerates the client environments a session can originate from.
type PlatformType string

const (
	PlatformReplit           PlatformType = "replit"
	PlatformGitHubCodespaces PlatformType = "github-codespaces"
	PlatformLocalVSCode      PlatformType = "local-vscode"
	PlatformDocker           PlatformType = "docker-rust"
	PlatformCustom           PlatformType = "custom"
)

// PlatformKind identifies a platform. Name is only set for PlatformCustom.
type PlatformKind struct {
	Type PlatformType
	Name string
}

// ParsePlatform maps a wire string onto a PlatformKind. Unknown strings
// become a custom platform carrying the string as its name; an empty string
// defaults to Replit.
func ParsePlatform(s string) PlatformKind {
	s = strings.TrimSpace(s)
	switch PlatformType(strings.ToLower(s)) {
	case "", PlatformReplit:
		return PlatformKind{Type: PlatformReplit}
	case PlatformGitHubCodespaces:
		return PlatformKind{Type: PlatformGitHubCodespaces}
	case PlatformLocalVSCode:
		return PlatformKind{Type: PlatformLocalVSCode}
	case PlatformDocker:
		return PlatformKind{Type: PlatformDocker}
	default:
		return CustomPlatform(s)
	}
}

// CustomPlatform returns a custom platform kind with the given name.
func CustomPlatform(name string) PlatformKind {
	return PlatformKind{Type: PlatformCustom, Name: name}
}

// IsCustom reports whether the kind is a custom named platform.
func (k PlatformKind) IsCustom() bool {
	return k.Type == PlatformCustom
}

// String returns the wire form of the kind.
func (k PlatformKind) String() string {
	if k.IsCustom() {
		return k.Name
	}
	return string(k.Type)
}

// DisplayName is the human-readable name used in status aggregation.
func (k PlatformKind) DisplayName() string {
	switch k.Type {
	case PlatformReplit:
		return "Replit"
	case PlatformGitHubCodespaces:
		return "GitHub Codespaces"
	case PlatformLocalVSCode:
		return "Local VSCode"
	case PlatformDocker:
		return "Docker Rust"
	default:
		return k.Name
	}
}

func (k PlatformKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *PlatformKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*k = ParsePlatform(s)
	return nil
}
