package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the layout document encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "json"
}

// FormatOf picks the encoding from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return 0, fmt.Errorf("unsupported layout extension %q", filepath.Ext(path))
}

// Encode writes rec to out.
func Encode(out io.Writer, f Format, rec Record) error {
	if f == FormatYAML {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "    ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// Decode reads one record tree.
func Decode(in io.Reader, f Format) (Record, error) {
	var rec Record
	if f == FormatYAML {
		if err := yaml.NewDecoder(in).Decode(&rec); err != nil {
			return Record{}, fmt.Errorf("%w: decode yaml: %v", ErrDeserialize, err)
		}
		return rec, nil
	}
	dec := json.NewDecoder(in)
	if err := dec.Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("%w: decode json: %v", ErrDeserialize, err)
	}
	return rec, nil
}

// Marshal encodes rec into memory.
func Marshal(f Format, rec Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, f, rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a record tree from memory.
func Unmarshal(f Format, data []byte) (Record, error) {
	return Decode(bytes.NewReader(data), f)
}

// ReadFile loads a layout document, choosing the format by extension.
func ReadFile(path string) (Record, error) {
	f, err := FormatOf(path)
	if err != nil {
		return Record{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("read layout: %w", err)
	}
	return Unmarshal(f, data)
}

// WriteFile stores a layout document, choosing the format by extension.
// The file is replaced atomically.
func WriteFile(path string, rec Record) error {
	f, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Marshal(f, rec)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write layout: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write layout: %w", err)
	}
	return nil
}
