// Package manifest parses Launchpad's project-level dependency manifest
// (spec.md §3). Readers accept the same logical shape expressed as YAML
// (deps.yaml/deps.yml/dependencies.yaml/dependencies.yml, via
// gopkg.in/yaml.v3) or JSON (package.json/pantry.json, via
// encoding/json), matching spec.md §6's manifest-format contract.
//
// Grounded on the teacher's internal/recipe/loader.go for the
// find-upward-then-parse shape, generalized from a single recipe file to
// the first matching manifest filename walking up from a directory.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/launchpad-dev/launchpad/internal/errs"
)

// candidateNames lists the manifest filenames Launchpad recognizes, in
// the precedence order spec.md §6 specifies: first file found wins.
var candidateNames = []string{
	"deps.yaml",
	"deps.yml",
	"dependencies.yaml",
	"dependencies.yml",
	"package.json",
	"pantry.json",
}

// Service is one manifest service declaration (spec.md §3 Manifest.services).
// A bare-name declaration ("redis") decodes to
// Service{Name: "redis", AutoStart: true}.
type Service struct {
	Name      string            `yaml:"name" json:"name"`
	AutoStart bool              `yaml:"autoStart" json:"autoStart"`
	Port      int               `yaml:"port,omitempty" json:"port,omitempty"`
	Env       map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	DependsOn []string          `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`
}

// Manifest is the parsed, in-memory project declaration (spec.md §3).
type Manifest struct {
	// Path is the absolute path the manifest was loaded from.
	Path string `yaml:"-" json:"-"`

	Dependencies map[string]string `yaml:"dependencies" json:"dependencies"`
	Services     []Service         `yaml:"services" json:"services"`
	Global       bool              `yaml:"global" json:"global"`
	Scripts      map[string]string `yaml:"scripts,omitempty" json:"scripts,omitempty"`

	ExcludeDependencies       []string          `yaml:"excludeDependencies,omitempty" json:"excludeDependencies,omitempty"`
	ExcludeGlobalDependencies []string          `yaml:"excludeGlobalDependencies,omitempty" json:"excludeGlobalDependencies,omitempty"`
	ExcludeServiceDependencies map[string][]string `yaml:"excludeServiceDependencies,omitempty" json:"excludeServiceDependencies,omitempty"`
}

// serviceEntry accepts a service entry (YAML or JSON) as either a bare
// string or a full record, matching spec.md §3's "each either a bare name or a
// record" shape.
type serviceEntry struct {
	Service
}

func (s *serviceEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var name string
		if err := value.Decode(&name); err != nil {
			return err
		}
		s.Service = Service{Name: name, AutoStart: true}
		return nil
	}
	var raw Service
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.Service = raw
	return nil
}

func (s *serviceEntry) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		s.Service = Service{Name: name, AutoStart: true}
		return nil
	}
	var raw Service
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Service = raw
	return nil
}

type rawManifest struct {
	Dependencies               map[string]string    `yaml:"dependencies" json:"dependencies"`
	Services                   []serviceEntry        `yaml:"services" json:"services"`
	Global                     bool                  `yaml:"global" json:"global"`
	Scripts                    map[string]string     `yaml:"scripts" json:"scripts"`
	ExcludeDependencies        []string              `yaml:"excludeDependencies" json:"excludeDependencies"`
	ExcludeGlobalDependencies  []string              `yaml:"excludeGlobalDependencies" json:"excludeGlobalDependencies"`
	ExcludeServiceDependencies map[string][]string   `yaml:"excludeServiceDependencies" json:"excludeServiceDependencies"`
}

// Find walks upward from startDir looking for the first recognized
// manifest filename, checking candidateNames in order at each level
// before proceeding to the parent directory. Returns the absolute path,
// or an error with Kind errs.KindBadManifest if none is found before
// reaching the filesystem root.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", errs.New(errs.KindIoError, "manifest.Find", startDir, err)
	}

	for {
		for _, name := range candidateNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errs.New(errs.KindBadManifest, "manifest.Find", startDir, nil)
		}
		dir = parent
	}
}

// Load reads and parses the manifest at path. The format (YAML or JSON)
// is inferred from the file's extension/basename.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New(errs.KindIoError, "manifest.Load", path, err)
	}

	var raw rawManifest
	base := filepath.Base(path)
	if strings.HasSuffix(base, ".json") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errs.New(errs.KindBadManifest, "manifest.Load", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errs.New(errs.KindBadManifest, "manifest.Load", path, err)
		}
	}

	m := &Manifest{
		Path:                       path,
		Dependencies:               raw.Dependencies,
		Global:                     raw.Global,
		Scripts:                    raw.Scripts,
		ExcludeDependencies:        raw.ExcludeDependencies,
		ExcludeGlobalDependencies:  raw.ExcludeGlobalDependencies,
		ExcludeServiceDependencies: raw.ExcludeServiceDependencies,
	}
	if m.Dependencies == nil {
		m.Dependencies = map[string]string{}
	}
	for _, s := range raw.Services {
		m.Services = append(m.Services, s.Service)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// FindAndLoad combines Find and Load, the entry point used by
// cmd/launchpad's install and service commands.
func FindAndLoad(startDir string) (*Manifest, error) {
	path, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

func (m *Manifest) validate() error {
	seen := map[string]bool{}
	for _, s := range m.Services {
		if s.Name == "" {
			return errs.New(errs.KindBadManifest, "manifest.validate", "", nil)
		}
		if seen[s.Name] {
			return errs.New(errs.KindBadManifest, "manifest.validate", s.Name, nil)
		}
		seen[s.Name] = true
	}
	return nil
}

// ServiceByName returns the service declaration named name, or nil.
func (m *Manifest) ServiceByName(name string) *Service {
	for i := range m.Services {
		if m.Services[i].Name == name {
			return &m.Services[i]
		}
	}
	return nil
}

// SortedDependencyKeys returns the manifest's dependency aliases/domains
// in sorted order, the normalization spec.md §4.2's fingerprint input
// requires.
func (m *Manifest) SortedDependencyKeys() []string {
	keys := make([]string, 0, len(m.Dependencies))
	for k := range m.Dependencies {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ServiceNames returns the manifest's declared service names, sorted.
func (m *Manifest) ServiceNames() []string {
	names := make([]string, 0, len(m.Services))
	for _, s := range m.Services {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}
