// Package sources declares the static registry of genealogy sources searched
// by the orchestrator, loaded from an embedded YAML document.
package sources

import (
	"embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// AccessModel enumerates the fetch strategy a source requires.
type AccessModel string

const (
	AccessURLTemplate         AccessModel = "url-template"
	AccessURLTemplateLocation AccessModel = "url-template+location"
	AccessJSONAPI             AccessModel = "json-api"
	AccessFormSubmit          AccessModel = "form-submit"
	AccessLocationResolver    AccessModel = "location-resolver"
)

// ErrLocationTemplateMissing is returned when a source claims to need
// location filtering but carries no url_template_with_location.
var ErrLocationTemplateMissing = errors.New("location_filter_effective requires url_template_with_location")

// ErrUnknownSource is returned by Registry.Get for an unregistered key.
var ErrUnknownSource = errors.New("unknown source key")

// Source describes one of the ~18 searchable genealogy sources.
type Source struct {
	Key                     string      `yaml:"key"`
	DisplayName             string      `yaml:"display_name"`
	AccessModel             AccessModel `yaml:"access_model"`
	URLTemplate             string      `yaml:"url_template,omitempty"`
	URLTemplateWithLocation string      `yaml:"url_template_with_location,omitempty"`
	WaitForSelector         string      `yaml:"wait_for_selector,omitempty"`
	LocationFilterEffective bool        `yaml:"location_filter_effective,omitempty"`
	TestFixturePath         string      `yaml:"test_fixture_path,omitempty"`
	TestParams              map[string]string `yaml:"test_params,omitempty"`
	Disabled                bool        `yaml:"disabled,omitempty"`
}

func (s Source) validate() error {
	if s.LocationFilterEffective && s.URLTemplateWithLocation == "" {
		return fmt.Errorf("%s: %w", s.Key, ErrLocationTemplateMissing)
	}

	return nil
}

//go:embed sources.yaml
var embeddedSources embed.FS

// Registry is the immutable, load-once map of source key to descriptor.
type Registry struct {
	byKey map[string]Source
	keys  []string // insertion order, for deterministic iteration
}

type document struct {
	Sources []Source `yaml:"sources"`
}

// Load parses the embedded sources.yaml into a Registry.
func Load() (*Registry, error) {
	data, err := embeddedSources.ReadFile("sources.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded sources.yaml: %w", err)
	}

	return parse(data)
}

func parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse sources.yaml: %w", err)
	}

	reg := &Registry{
		byKey: make(map[string]Source, len(doc.Sources)),
		keys:  make([]string, 0, len(doc.Sources)),
	}

	for _, src := range doc.Sources {
		if err := src.validate(); err != nil {
			return nil, err
		}

		reg.byKey[src.Key] = src
		reg.keys = append(reg.keys, src.Key)
	}

	return reg, nil
}

// Get returns the source descriptor for key.
func (r *Registry) Get(key string) (Source, error) {
	src, ok := r.byKey[key]
	if !ok {
		return Source{}, fmt.Errorf("%s: %w", key, ErrUnknownSource)
	}

	return src, nil
}

// Active returns every non-disabled source key, in registry order.
func (r *Registry) Active() []string {
	active := make([]string, 0, len(r.keys))

	for _, key := range r.keys {
		if !r.byKey[key].Disabled {
			active = append(active, key)
		}
	}

	return active
}

// All returns every registered source key, including disabled ones.
func (r *Registry) All() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)

	return out
}
