package main

import (
	"fmt"
	"os"

	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"
)

// schemaFile is the YAML or JSON description of a class:
//
//	className: Post
//	fields:
//	  title: {type: String, required: true}
//	  owner: {type: Pointer, targetClass: _User}
//	classLevelPermissions:
//	  find: {"*": true}
//	indexes:
//	  title_owner: {title: 1, _p_owner: -1}
type schemaFile struct {
	ClassName string               `yaml:"className"`
	Fields    map[string]fieldFile `yaml:"fields"`
	CLP       map[string]any       `yaml:"classLevelPermissions"`
	Indexes   map[string]yaml.Node `yaml:"indexes"`
}

type fieldFile struct {
	Type        string         `yaml:"type"`
	TargetClass string         `yaml:"targetClass"`
	Options     map[string]any `yaml:",inline"`
}

func loadSchema(path string) (domain.Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.Schema{}, err
	}
	return parseSchema(b)
}

func parseSchema(b []byte) (domain.Schema, error) {
	var f schemaFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return domain.Schema{}, fmt.Errorf("invalid schema file: %w", err)
	}
	if f.ClassName == "" {
		return domain.Schema{}, domain.Invalid("schema file has no className")
	}

	s := domain.Schema{
		ClassName: f.ClassName,
		Fields:    make(map[string]domain.Field, len(f.Fields)),
		CLP:       domain.UnsetCLP(),
		Indexes:   make(map[string]bson.D, len(f.Indexes)),
	}
	for name, ff := range f.Fields {
		t, ok := domain.ParseFieldType(ff.Type)
		if !ok {
			return domain.Schema{}, domain.Invalid("invalid field type %q of %s", ff.Type, name)
		}
		field := domain.Field{Type: t, TargetClass: ff.TargetClass}
		if len(ff.Options) > 0 {
			field.Options = ff.Options
		}
		s.Fields[name] = field
	}
	if f.CLP != nil {
		s.CLP = domain.SetCLP(f.CLP)
	}
	for name, node := range f.Indexes {
		keys, err := indexKeys(&node)
		if err != nil {
			return domain.Schema{}, fmt.Errorf("index %s: %w", name, err)
		}
		s.Indexes[name] = keys
	}
	return s, nil
}

// indexKeys reads a key specification keeping the order written in the file.
func indexKeys(node *yaml.Node) (bson.D, error) {
	if node.Kind != yaml.MappingNode {
		return nil, domain.Invalid("index keys must be a mapping")
	}
	keys := make(bson.D, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var value any
		if err := node.Content[i+1].Decode(&value); err != nil {
			return nil, err
		}
		keys = append(keys, bson.E{Key: node.Content[i].Value, Value: value})
	}
	return keys, nil
}
