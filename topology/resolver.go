package topology

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/jsonc"
)

// Resolver loads the topology from the settings file. Every Load reads the file again so
// edits apply to the next request.
type Resolver struct {
	path string
}

// SettingsPathProvider names the settings file. config.FilesConfig satisfies it.
type SettingsPathProvider interface {
	GetSettingsPath() string
}

func NewResolver(cfg SettingsPathProvider) *Resolver {
	return &Resolver{path: cfg.GetSettingsPath()}
}

// Load returns a fresh snapshot. A missing settings file yields an empty topology.
func (r *Resolver) Load() (*Topology, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", r.path).Msg("Settings file not found, no services configured")
		return &Topology{services: map[string]*Service{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[Resolver.Load] read %s: %w", r.path, err)
	}

	switch strings.ToLower(filepath.Ext(r.path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("[Resolver.Load] %s: %w", r.path, err)
	}
	log.Debug().Str("path", r.path).Int("service_count", len(t.order)).Msg("Settings loaded")
	return t, nil
}
