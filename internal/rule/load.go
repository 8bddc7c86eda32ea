package rule

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a rule document. JSON documents are valid YAML so both
// encodings go through the same decoder; unknown fields are rejected.
func Load(r io.Reader) (Rule, error) {
	var rl Rule
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rl); err != nil {
		if errors.Is(err, io.EOF) {
			return Rule{}, nil
		}
		return Rule{}, fmt.Errorf("decoding rule: %w", err)
	}
	if err := rl.Validate(); err != nil {
		return Rule{}, err
	}
	return rl.Normalize(), nil
}

// LoadFile reads a rule from a YAML or JSON file
func LoadFile(path string) (Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rule{}, fmt.Errorf("reading rule file: %w", err)
	}
	rl, err := Load(bytes.NewReader(data))
	if err != nil {
		return Rule{}, fmt.Errorf("%s: %w", path, err)
	}
	return rl, nil
}

// Save writes the rule as YAML
func Save(w io.Writer, rl Rule) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rl.Normalize()); err != nil {
		return fmt.Errorf("encoding rule: %w", err)
	}
	return enc.Close()
}

// SaveFile writes the rule to path as YAML
func SaveFile(path string, rl Rule) error {
	var buf bytes.Buffer
	if err := Save(&buf, rl); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing rule file: %w", err)
	}
	return nil
}
