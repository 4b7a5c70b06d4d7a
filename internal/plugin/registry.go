package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Registry discovers plugin declaration files on a filesystem path. It
// records plugin name -> manifest location and keeps per-path discovery
// errors; it never executes plugin code.
type Registry struct {
	root string
	log  *zap.Logger

	manifests map[string]string // name -> manifest path
	errors    map[string]error  // manifest path -> discovery error
}

// NewRegistry creates a registry rooted at the given plugins directory.
func NewRegistry(root string, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		root:      root,
		log:       log,
		manifests: make(map[string]string),
		errors:    make(map[string]error),
	}
}

// Root returns the plugins root path.
func (r *Registry) Root() string {
	return r.root
}

// Discover scans every immediate subdirectory of the root for a
// plugin.json file, in lexicographic path order so load ordering and
// side-effect logging are deterministic across runs.
//
// A malformed declaration file is recorded as a discovery error keyed by
// its path and excluded from the result; discovery continues for all other
// entries. A missing root yields an empty result, logged, not an error.
func (r *Registry) Discover() error {
	r.manifests = make(map[string]string)
	r.errors = make(map[string]error)

	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			r.log.Info("plugins directory not found", zap.String("path", r.root))
			return nil
		}
		return fmt.Errorf("failed to read plugins directory: %w", err)
	}

	// os.ReadDir returns entries sorted by name.
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		manifestPath := filepath.Join(r.root, entry.Name(), ManifestFileName)
		if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
			continue
		}

		name, err := r.inspect(manifestPath)
		if err != nil {
			r.errors[manifestPath] = err
			r.log.Warn("skipping plugin",
				zap.String("manifest", manifestPath),
				zap.Error(err))
			continue
		}

		if prev, exists := r.manifests[name]; exists {
			r.errors[manifestPath] = fmt.Errorf("%w: %q already declared by %s",
				ErrDuplicateName, name, prev)
			r.log.Warn("skipping plugin",
				zap.String("manifest", manifestPath),
				zap.String("name", name),
				zap.Error(ErrDuplicateName))
			continue
		}

		r.manifests[name] = manifestPath
		r.log.Debug("discovered plugin",
			zap.String("name", name),
			zap.String("manifest", manifestPath))
	}

	return nil
}

// inspect reads just the declared name from a manifest file. Full parsing
// and validation happen again at load time.
func (r *Registry) inspect(manifestPath string) (string, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return "", fmt.Errorf("failed to read manifest: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("manifest is not valid JSON")
	}
	name := gjson.GetBytes(data, "name").String()
	if name == "" {
		return "", ErrMissingName
	}
	return name, nil
}

// Manifests returns the discovered name -> manifest path map.
func (r *Registry) Manifests() map[string]string {
	out := make(map[string]string, len(r.manifests))
	for k, v := range r.manifests {
		out[k] = v
	}
	return out
}

// Names returns discovered plugin names sorted by manifest path, matching
// discovery order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.manifests))
	for name := range r.manifests {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return r.manifests[names[i]] < r.manifests[names[j]]
	})
	return names
}

// Errors returns discovery errors keyed by manifest path.
func (r *Registry) Errors() map[string]error {
	out := make(map[string]error, len(r.errors))
	for k, v := range r.errors {
		out[k] = v
	}
	return out
}

// Count returns the number of discovered plugins.
func (r *Registry) Count() int {
	return len(r.manifests)
}
