// Package modelfile loads entity models declared in YAML and registers them
// through the convention pipeline.
//
// A model file looks like:
//
//	naming: snake_plural
//	entities:
//	  - name: Customer
//	    properties:
//	      - {name: Id, type: int!}
//	      - {name: Name, type: string?}
//	    navigations:
//	      - {name: Orders, target: Order, collection: true, inverse: Customer}
package modelfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidModelFile wraps every decode and validation failure
var ErrInvalidModelFile = errors.New("invalid model file")

// File is the decoded form of a model file
type File struct {
	Naming        string         `yaml:"naming" validate:"omitempty,oneof=identity snake_plural"`
	Entities      []Entity       `yaml:"entities" validate:"required,min=1,dive"`
	Relationships []Relationship `yaml:"relationships" validate:"dive"`
}

// Entity declares one entity
type Entity struct {
	Name          string       `yaml:"name" validate:"required"`
	Table         string       `yaml:"table"`
	Schema        string       `yaml:"schema"`
	Key           []string     `yaml:"key"`
	AlternateKeys [][]string   `yaml:"alternate_keys" validate:"dive,min=1"`
	Properties    []Property   `yaml:"properties" validate:"dive"`
	Navigations   []Navigation `yaml:"navigations" validate:"dive"`
}

// Property declares one property; Type is written "int!", "string?" or a bare kind
type Property struct {
	Name   string `yaml:"name" validate:"required"`
	Type   string `yaml:"type" validate:"required"`
	Column string `yaml:"column"`
	Shadow bool   `yaml:"shadow"`
}

// Navigation declares a navigation hint
type Navigation struct {
	Name         string   `yaml:"name" validate:"required"`
	Target       string   `yaml:"target" validate:"required"`
	Collection   bool     `yaml:"collection"`
	Inverse      string   `yaml:"inverse"`
	ForeignKey   []string `yaml:"foreign_key"`
	PrincipalKey []string `yaml:"principal_key"`
	Unique       bool     `yaml:"unique"`
	Required     *bool    `yaml:"required"`
}

// Relationship requests a relationship that no navigation hint declares
type Relationship struct {
	Dependent    string   `yaml:"dependent" validate:"required"`
	Principal    string   `yaml:"principal" validate:"required"`
	ToPrincipal  string   `yaml:"to_principal"`
	ToDependent  string   `yaml:"to_dependent"`
	ForeignKey   []string `yaml:"foreign_key"`
	PrincipalKey []string `yaml:"principal_key"`
	Unique       *bool    `yaml:"unique"`
	Required     *bool    `yaml:"required"`
}

var validate = validator.New()

// Decode reads and validates a model file
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidModelFile)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidModelFile, err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModelFile, err)
	}
	return &f, nil
}

// ReadFile decodes the model file at path
func ReadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	f, err := Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}
