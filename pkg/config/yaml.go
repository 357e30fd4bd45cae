package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAML overlays the YAML document at path onto v. Fields absent from the
// file keep their current values, so callers can apply env defaults first.
func LoadYAML[T any](path string, v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Join(ErrReadingFile, err)
	}
	return DecodeYAML(data, v)
}

// DecodeYAML overlays a YAML document onto v.
func DecodeYAML[T any](data []byte, v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}
