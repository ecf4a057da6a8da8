package assets

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the optional manifest looked up at the root of a Source.
const ManifestFile = "styles.yaml"

// DefaultArchitectureFile is the descriptor shared by every style.
const DefaultArchitectureFile = "styletransfer.param.bin"

// DefaultStyles are the five bundled styles in slot order.
var DefaultStyles = []string{"candy", "mosaic", "pointilism", "rain_princess", "udnie"}

// Manifest lists the asset files and optional SHA256 pins.
//
//	architecture:
//	  file: styletransfer.param.bin
//	  sha256: 5d1c...
//	styles:
//	  - name: candy
//	    file: candy.bin
//	  - name: mosaic
//	    file: mosaic.bin
type Manifest struct {
	Architecture Entry   `yaml:"architecture"`
	Styles       []Style `yaml:"styles"`
}

// Entry is one asset file with an optional pinned checksum.
type Entry struct {
	File   string `yaml:"file"`
	SHA256 string `yaml:"sha256,omitempty"`
}

// Style is a named weight file.
type Style struct {
	Name  string `yaml:"name"`
	Entry `yaml:",inline"`
}

// DefaultManifest returns the layout used when no styles.yaml is present:
// the shared descriptor plus <style>.bin for each default style.
func DefaultManifest() *Manifest {
	m := &Manifest{Architecture: Entry{File: DefaultArchitectureFile}}
	for _, name := range DefaultStyles {
		m.Styles = append(m.Styles, Style{Name: name, Entry: Entry{File: name + ".bin"}})
	}
	return m
}

// ParseManifest decodes and validates a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifest reads styles.yaml from src, or returns DefaultManifest when
// the source has none.
func LoadManifest(src Source) (*Manifest, error) {
	data, err := src.ReadFile(ManifestFile)
	if err != nil {
		if errors.Is(err, ErrAssetNotFound) {
			return DefaultManifest(), nil
		}
		return nil, err
	}
	return ParseManifest(data)
}

// Validate checks that every file is named, style names are unique and
// pinned checksums look like SHA256 hex.
func (m *Manifest) Validate() error {
	if m.Architecture.File == "" {
		return fmt.Errorf("%w: architecture file is empty", ErrInvalidManifest)
	}
	if err := checkPin(m.Architecture); err != nil {
		return err
	}
	if len(m.Styles) == 0 {
		return fmt.Errorf("%w: no styles", ErrInvalidManifest)
	}
	seen := make(map[string]bool, len(m.Styles))
	for i, s := range m.Styles {
		if s.Name == "" || s.File == "" {
			return fmt.Errorf("%w: style %d needs a name and a file", ErrInvalidManifest, i)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate style %q", ErrInvalidManifest, s.Name)
		}
		seen[s.Name] = true
		if err := checkPin(s.Entry); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the style names in slot order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Styles))
	for i, s := range m.Styles {
		names[i] = s.Name
	}
	return names
}

// Marshal encodes the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

func checkPin(e Entry) error {
	if e.SHA256 == "" {
		return nil
	}
	sum := strings.TrimSpace(e.SHA256)
	if len(sum) != 64 || strings.Trim(strings.ToLower(sum), "0123456789abcdef") != "" {
		return fmt.Errorf("%w: %s has a malformed sha256 %q", ErrInvalidManifest, e.File, e.SHA256)
	}
	return nil
}
