package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/rzbill/placer/pkg/types"
)

//go:embed manifest/default.yaml manifest/schema.json
var manifestFS embed.FS

// Manifest is the on-disk description of services and their components.
type Manifest struct {
	Version  string            `yaml:"version"`
	Services []ManifestService `yaml:"services"`
}

// ManifestService describes one service in a manifest.
type ManifestService struct {
	Name         string              `yaml:"name"`
	Type         string              `yaml:"type"`
	Priority     int                 `yaml:"priority"`
	Description  string              `yaml:"description"`
	Dependencies []string            `yaml:"dependencies"`
	ConfDirs     []types.ConfDir     `yaml:"confDirs"`
	Properties   []types.Property    `yaml:"properties"`
	Components   []ManifestComponent `yaml:"components"`
}

// ManifestComponent describes one component in a manifest. An omitted max
// means unbounded.
type ManifestComponent struct {
	Name     string   `yaml:"name"`
	Priority int      `yaml:"priority"`
	Min      int      `yaml:"min"`
	Max      *int     `yaml:"max"`
	Mutexes  []string `yaml:"mutexes"`
}

// Default returns the catalog built from the manifest compiled into the binary.
func Default() (*Catalog, error) {
	data, err := manifestFS.ReadFile("manifest/default.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read built-in manifest: %w", err)
	}
	return Parse(data)
}

// Load builds a catalog from path, which is either a manifest file or a
// directory of *.yaml / *.yml manifests. An empty path loads the built-in
// manifest.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat manifest %s: %w", path, err)
	}

	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
		}
		return Parse(data)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest directory %s: %w", path, err)
	}

	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no manifests found in %s", path)
	}

	merged := Manifest{}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest %s: %w", file, err)
		}
		m, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(file), err)
		}
		if m.Version != "" {
			if merged.Version != "" && merged.Version != m.Version {
				return nil, fmt.Errorf("%s: manifest version %s conflicts with %s", filepath.Base(file), m.Version, merged.Version)
			}
			merged.Version = m.Version
		}
		merged.Services = append(merged.Services, m.Services...)
	}

	return merged.Build()
}

// Parse validates a single YAML manifest and builds a catalog from it.
func Parse(data []byte) (*Catalog, error) {
	m, err := decode(data)
	if err != nil {
		return nil, err
	}
	return m.Build()
}

// Build converts the manifest into a catalog.
func (m *Manifest) Build() (*Catalog, error) {
	var services []types.ServiceDefinition
	var components []types.ComponentDefinition

	for _, s := range m.Services {
		services = append(services, types.ServiceDefinition{
			Name:         s.Name,
			Type:         types.ServiceType(strings.ToUpper(s.Type)),
			Priority:     s.Priority,
			Description:  s.Description,
			Dependencies: s.Dependencies,
			ConfDirs:     s.ConfDirs,
			Properties:   s.Properties,
		})
		for _, c := range s.Components {
			upper := types.Unbounded
			if c.Max != nil {
				upper = *c.Max
			}
			components = append(components, types.ComponentDefinition{
				Name:        c.Name,
				ServiceName: s.Name,
				Priority:    c.Priority,
				Min:         c.Min,
				Max:         upper,
				Mutexes:     c.Mutexes,
			})
		}
	}

	return New(m.Version, services, components)
}

// decode validates the document against the manifest schema and decodes it.
func decode(data []byte) (*Manifest, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("manifest is empty")
	}

	if err := validateSchema(doc); err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

func validateSchema(doc interface{}) error {
	schema, err := manifestFS.ReadFile("manifest/schema.json")
	if err != nil {
		return fmt.Errorf("failed to read manifest schema: %w", err)
	}

	docBytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest for validation: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(docBytes))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		var b strings.Builder
		b.WriteString("manifest does not match schema:")
		for _, desc := range result.Errors() {
			fmt.Fprintf(&b, "\n  - %s: %s", desc.Field(), desc.Description())
		}
		return fmt.Errorf("%s", b.String())
	}

	return nil
}
