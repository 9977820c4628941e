package platform

import (
	"github.com/rs/zerolog"

	"github.com/joescharf/sessionhub/internal/models"
)

// Replit talks to Replit workspaces.
type Replit struct{ *stub }

func NewReplit(deployURL string, logger zerolog.Logger) *Replit {
	return &Replit{newStub(models.PlatformKind{Type: models.PlatformReplit}, deployURL, logger)}
}

// Codespaces talks to GitHub Codespaces.
type Codespaces struct{ *stub }

func NewCodespaces(deployURL string, logger zerolog.Logger) *Codespaces {
	return &Codespaces{newStub(models.PlatformKind{Type: models.PlatformGitHubCodespaces}, deployURL, logger)}
}

// LocalVSCode talks to a VS Code instance on the developer's machine.
type LocalVSCode struct{ *stub }

func NewLocalVSCode(deployURL string, logger zerolog.Logger) *LocalVSCode {
	return &LocalVSCode{newStub(models.PlatformKind{Type: models.PlatformLocalVSCode}, deployURL, logger)}
}

// Docker runs sessions inside a Rust build container.
type Docker struct{ *stub }

func NewDocker(deployURL string, logger zerolog.Logger) *Docker {
	return &Docker{newStub(models.PlatformKind{Type: models.PlatformDocker}, deployURL, logger)}
}

// Custom serves any platform name the directory does not know.
type Custom struct{ *stub }

func NewCustom(name, deployURL string, logger zerolog.Logger) *Custom {
	return &Custom{newStub(models.CustomPlatform(name), deployURL, logger)}
}
