package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/ruletree/ruletree/internal/registry"
	"github.com/ruletree/ruletree/internal/target"
	"github.com/ruletree/ruletree/internal/target/sqlgen"
	"github.com/ruletree/ruletree/internal/tree"
)

// OperatorDef is one declarative custom operator. The template is SQL
// text with {field}, {0} and {1} placeholders:
//
//	operators:
//	  - name: any_of
//	    template: "{field} = ANY({0})"
//	    cardinality: 1
//	    types: [number]
type OperatorDef struct {
	Name        string   `mapstructure:"name"`
	Template    string   `mapstructure:"template"`
	Cardinality int      `mapstructure:"cardinality"`
	Sources     []string `mapstructure:"sources"`
	Types       []string `mapstructure:"types"`
	Reverse     string   `mapstructure:"reverse"`
}

// OperatorDefs decodes the free-form operator maps into typed
// definitions. Unknown keys in an entry are errors.
func (c *Config) OperatorDefs() ([]OperatorDef, error) {
	defs := make([]OperatorDef, 0, len(c.Operators))
	for i, raw := range c.Operators {
		var def OperatorDef
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:      &def,
			ErrorUnused: true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(raw); err != nil {
			return nil, fmt.Errorf("operators[%d]: %w", i, err)
		}
		if def.Name == "" {
			return nil, fmt.Errorf("operators[%d]: name is required", i)
		}
		if def.Template == "" {
			return nil, fmt.Errorf("operators[%d] (%s): template is required", i, def.Name)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Info converts the definition into operator metadata.
func (d OperatorDef) Info() (registry.OperatorInfo, error) {
	info := registry.OperatorInfo{
		Name:        d.Name,
		Cardinality: d.Cardinality,
		Reverse:     d.Reverse,
	}
	for _, s := range d.Sources {
		src, err := tree.ParseValueSource(s)
		if err != nil {
			return registry.OperatorInfo{}, fmt.Errorf("operator %s: %w", d.Name, err)
		}
		info.ValueSources = append(info.ValueSources, src)
	}
	for _, t := range d.Types {
		tag, err := tree.ParseTypeTag(t)
		if err != nil {
			return registry.OperatorInfo{}, fmt.Errorf("operator %s: %w", d.Name, err)
		}
		info.Types = append(info.Types, tag)
	}
	return info, nil
}

// TemplateOperators converts the configured operators into the form
// compile options carry.
func (c *Config) TemplateOperators() ([]target.TemplateOperator, error) {
	defs, err := c.OperatorDefs()
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, nil
	}
	ops := make([]target.TemplateOperator, 0, len(defs))
	for _, def := range defs {
		info, err := def.Info()
		if err != nil {
			return nil, err
		}
		ops = append(ops, target.TemplateOperator{Info: info, Template: def.Template})
	}
	return ops, nil
}

// RegisterOperators installs every configured operator on a SQL
// registry.
func RegisterOperators(r *registry.Registry[sqlgen.Fragment], defs []OperatorDef) error {
	for _, def := range defs {
		info, err := def.Info()
		if err != nil {
			return err
		}
		if err := sqlgen.RegisterTemplate(r, info, def.Template); err != nil {
			return fmt.Errorf("operator %s: %w", def.Name, err)
		}
	}
	return nil
}
