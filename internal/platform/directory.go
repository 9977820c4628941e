package platform

import (
	"github.com/rs/zerolog"

	"github.com/joescharf/sessionhub/internal/models"
)

// Directory maps platform kinds to adapters.
type Directory struct {
	adapters  map[models.PlatformType]Adapter
	overrides map[models.PlatformType]Adapter
	custom    func(name string) Adapter
	deployURL string
	logger    zerolog.Logger
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithDeployURL sets the URL the built-in adapters report after deploying.
func WithDeployURL(url string) DirectoryOption {
	return func(d *Directory) {
		if url != "" {
			d.deployURL = url
		}
	}
}

// WithAdapter replaces the adapter for a built-in kind.
func WithAdapter(kind models.PlatformType, a Adapter) DirectoryOption {
	return func(d *Directory) {
		d.overrides[kind] = a
	}
}

// WithCustomFactory sets how adapters for custom platforms are built.
func WithCustomFactory(f func(name string) Adapter) DirectoryOption {
	return func(d *Directory) {
		d.custom = f
	}
}

// NewDirectory returns a Directory populated with the built-in adapters.
func NewDirectory(logger zerolog.Logger, opts ...DirectoryOption) *Directory {
	d := &Directory{
		adapters:  make(map[models.PlatformType]Adapter),
		overrides: make(map[models.PlatformType]Adapter),
		deployURL: DefaultDeployURL,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.adapters[models.PlatformReplit] = NewReplit(d.deployURL, logger)
	d.adapters[models.PlatformGitHubCodespaces] = NewCodespaces(d.deployURL, logger)
	d.adapters[models.PlatformLocalVSCode] = NewLocalVSCode(d.deployURL, logger)
	d.adapters[models.PlatformDocker] = NewDocker(d.deployURL, logger)
	for k, a := range d.overrides {
		d.adapters[k] = a
	}

	if d.custom == nil {
		d.custom = func(name string) Adapter {
			return NewCustom(name, d.deployURL, d.logger)
		}
	}
	return d
}

// For returns the adapter for kind. It never returns nil.
func (d *Directory) For(kind models.PlatformKind) Adapter {
	if kind.IsCustom() {
		if a := d.custom(kind.Name); a != nil {
			return a
		}
		return NewCustom(kind.Name, d.deployURL, d.logger)
	}
	if a, ok := d.adapters[kind.Type]; ok && a != nil {
		return a
	}
	return NewCustom(kind.String(), d.deployURL, d.logger)
}
