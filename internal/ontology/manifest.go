package ontology

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"owlreasoner/internal/errs"
	"owlreasoner/internal/iri"
	"owlreasoner/internal/owl"
)

// manifest is the YAML layout accepted by LoadManifest:
//
//	prefixes: {ex: "http://example.org/zoo#"}
//	strict: true
//	classes: [ex:Animal, ex:Dog]
//	object_properties: [ex:hasOwner]
//	individuals: [ex:rex]
//	axioms:
//	  - subclass: {sub: ex:Dog, super: ex:Animal}
//	  - type: {individual: ex:rex, class: {some: {property: ex:hasOwner, filler: ex:Person}}}
type manifest struct {
	Prefixes         map[string]string      `yaml:"prefixes"`
	Strict           *bool                  `yaml:"strict"`
	Classes          []string               `yaml:"classes"`
	ObjectProperties []string               `yaml:"object_properties"`
	DataProperties   []string               `yaml:"data_properties"`
	Individuals      []string               `yaml:"individuals"`
	Axioms           []map[string]yaml.Node `yaml:"axioms"`
}

type pairSpec struct {
	Sub   yaml.Node `yaml:"sub"`
	Super yaml.Node `yaml:"super"`
}

type typeSpec struct {
	Individual string    `yaml:"individual"`
	Class      yaml.Node `yaml:"class"`
}

type factSpec struct {
	Subject  string `yaml:"subject"`
	Property string `yaml:"property"`
	Object   string `yaml:"object"`
}

type valueSpec struct {
	Subject  string `yaml:"subject"`
	Property string `yaml:"property"`
	Value    string `yaml:"value"`
	Datatype string `yaml:"datatype"`
	Lang     string `yaml:"lang"`
}

type propertyPairSpec struct {
	Sub   string `yaml:"sub"`
	Super string `yaml:"super"`
}

type restrictionSpec struct {
	N        int       `yaml:"n"`
	Property string    `yaml:"property"`
	Filler   yaml.Node `yaml:"filler"`
}

type manifestLoader struct {
	registry *iri.Registry
}

// LoadManifest builds an ontology from a YAML manifest. The manifest's
// strict flag selects the mode unless an explicit WithMode option is given.
// Duplicate axioms in the manifest are skipped.
func LoadManifest(r io.Reader, registry *iri.Registry, opts ...Option) (*Ontology, error) {
	var m manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	for prefix, ns := range m.Prefixes {
		if err := registry.RegisterPrefix(prefix, ns); err != nil {
			return nil, fmt.Errorf("prefix %s: %w", prefix, err)
		}
	}

	if m.Strict != nil && !*m.Strict {
		opts = append([]Option{WithMode(ModeAutoDeclare)}, opts...)
	}
	o := New(registry, opts...)
	l := &manifestLoader{registry: registry}

	declarations := []struct {
		names   []string
		declare func(*iri.IRI) error
	}{
		{m.Classes, o.AddClass},
		{m.ObjectProperties, o.AddObjectProperty},
		{m.DataProperties, o.AddDataProperty},
		{m.Individuals, o.AddNamedIndividual},
	}
	for _, d := range declarations {
		for _, name := range d.names {
			i, err := l.iri(name)
			if err != nil {
				return nil, err
			}
			if err := d.declare(i); err != nil {
				return nil, err
			}
		}
	}

	for idx, entry := range m.Axioms {
		if len(entry) != 1 {
			return nil, fmt.Errorf("axiom %d: expected exactly one key, got %d", idx, len(entry))
		}
		for kind, node := range entry {
			ax, err := l.axiom(kind, &node)
			if err != nil {
				return nil, fmt.Errorf("axiom %d (%s): %w", idx, kind, err)
			}
			if err := o.AddAxiom(ax); err != nil && !errs.IsNonFatal(err) {
				return nil, fmt.Errorf("axiom %d (%s): %w", idx, kind, err)
			}
		}
	}
	return o, nil
}

func (l *manifestLoader) iri(name string) (*iri.IRI, error) {
	return l.registry.Expand(name)
}

func (l *manifestLoader) iris(node *yaml.Node) ([]*iri.IRI, error) {
	var names []string
	if err := node.Decode(&names); err != nil {
		return nil, err
	}
	out := make([]*iri.IRI, 0, len(names))
	for _, n := range names {
		i, err := l.iri(n)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

func (l *manifestLoader) property(node *yaml.Node) (*iri.IRI, error) {
	var name string
	if err := node.Decode(&name); err != nil {
		return nil, err
	}
	return l.iri(name)
}

func (l *manifestLoader) axiom(kind string, node *yaml.Node) (owl.Axiom, error) {
	switch kind {
	case "subclass":
		var s pairSpec
		if err := node.Decode(&s); err != nil {
			return nil, err
		}
		sub, err := l.expression(&s.Sub)
		if err != nil {
			return nil, err
		}
		sup, err := l.expression(&s.Super)
		if err != nil {
			return nil, err
		}
		return owl.SubClassOf{Sub: sub, Super: sup}, nil

	case "equivalent", "disjoint":
		exprs, err := l.expressions(node)
		if err != nil {
			return nil, err
		}
		if kind == "equivalent" {
			return owl.EquivalentClasses{Classes: exprs}, nil
		}
		return owl.DisjointClasses{Classes: exprs}, nil

	case "type":
		var s typeSpec
		if err := node.Decode(&s); err != nil {
			return nil, err
		}
		ind, err := l.iri(s.Individual)
		if err != nil {
			return nil, err
		}
		ce, err := l.expression(&s.Class)
		if err != nil {
			return nil, err
		}
		return owl.ClassAssertion{Class: ce, Individual: ind}, nil

	case "fact":
		var s factSpec
		if err := node.Decode(&s); err != nil {
			return nil, err
		}
		names := []string{s.Property, s.Subject, s.Object}
		parts := make([]*iri.IRI, len(names))
		for i, n := range names {
			v, err := l.iri(n)
			if err != nil {
				return nil, err
			}
			parts[i] = v
		}
		return owl.ObjectPropertyAssertion{Property: parts[0], Subject: parts[1], Object: parts[2]}, nil

	case "value":
		var s valueSpec
		if err := node.Decode(&s); err != nil {
			return nil, err
		}
		p, err := l.iri(s.Property)
		if err != nil {
			return nil, err
		}
		subj, err := l.iri(s.Subject)
		if err != nil {
			return nil, err
		}
		dt := s.Datatype
		if dt == "" {
			dt = iri.XSDString
		}
		datatype, err := l.iri(dt)
		if err != nil {
			return nil, err
		}
		lit := owl.Literal{Lexical: s.Value, Datatype: datatype, Lang: s.Lang}
		return owl.DataPropertyAssertion{Property: p, Subject: subj, Value: lit}, nil

	case "functional", "inverse_functional", "symmetric", "transitive":
		p, err := l.property(node)
		if err != nil {
			return nil, err
		}
		switch kind {
		case "functional":
			return owl.FunctionalObjectProperty{Property: p}, nil
		case "inverse_functional":
			return owl.InverseFunctionalObjectProperty{Property: p}, nil
		case "symmetric":
			return owl.SymmetricObjectProperty{Property: p}, nil
		default:
			return owl.TransitiveObjectProperty{Property: p}, nil
		}

	case "subproperty":
		var s propertyPairSpec
		if err := node.Decode(&s); err != nil {
			return nil, err
		}
		sub, err := l.iri(s.Sub)
		if err != nil {
			return nil, err
		}
		sup, err := l.iri(s.Super)
		if err != nil {
			return nil, err
		}
		return owl.SubObjectPropertyOf{Sub: sub, Super: sup}, nil

	case "same", "different":
		inds, err := l.iris(node)
		if err != nil {
			return nil, err
		}
		if kind == "same" {
			return owl.SameIndividual{Individuals: inds}, nil
		}
		return owl.DifferentIndividuals{Individuals: inds}, nil
	}
	return nil, fmt.Errorf("unknown axiom kind %q", kind)
}

func (l *manifestLoader) expressions(node *yaml.Node) ([]owl.ClassExpression, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: expected a list of class expressions", node.Line)
	}
	out := make([]owl.ClassExpression, 0, len(node.Content))
	for _, child := range node.Content {
		ce, err := l.expression(child)
		if err != nil {
			return nil, err
		}
		out = append(out, ce)
	}
	return out, nil
}

// expression decodes a class expression: a scalar names a class, a single-key
// mapping selects a constructor.
func (l *manifestLoader) expression(node *yaml.Node) (owl.ClassExpression, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		i, err := l.iri(node.Value)
		if err != nil {
			return nil, err
		}
		return owl.NamedClass{IRI: i}, nil
	case yaml.MappingNode:
	default:
		return nil, fmt.Errorf("line %d: expected a class name or constructor", node.Line)
	}
	if len(node.Content) != 2 {
		return nil, fmt.Errorf("line %d: constructor must have exactly one key", node.Line)
	}
	op, arg := node.Content[0].Value, node.Content[1]

	switch op {
	case "and", "or":
		ops, err := l.expressions(arg)
		if err != nil {
			return nil, err
		}
		if op == "and" {
			return owl.ObjectIntersectionOf{Operands: ops}, nil
		}
		return owl.ObjectUnionOf{Operands: ops}, nil
	case "not":
		inner, err := l.expression(arg)
		if err != nil {
			return nil, err
		}
		return owl.ObjectComplementOf{Operand: inner}, nil
	case "some", "all", "min", "max", "exactly":
		var s restrictionSpec
		if err := arg.Decode(&s); err != nil {
			return nil, err
		}
		p, err := l.iri(s.Property)
		if err != nil {
			return nil, err
		}
		var filler owl.ClassExpression
		if s.Filler.Kind != 0 {
			if filler, err = l.expression(&s.Filler); err != nil {
				return nil, err
			}
		}
		switch op {
		case "some", "all":
			if filler == nil {
				filler = owl.NamedClass{IRI: l.registry.MustGet(iri.OWLThing)}
			}
			if op == "some" {
				return owl.ObjectSomeValuesFrom{Property: p, Filler: filler}, nil
			}
			return owl.ObjectAllValuesFrom{Property: p, Filler: filler}, nil
		case "min":
			return owl.Min(s.N, p, filler), nil
		case "max":
			return owl.Max(s.N, p, filler), nil
		default:
			return owl.Exactly(s.N, p, filler), nil
		}
	}
	return nil, fmt.Errorf("line %d: unknown class constructor %q", node.Line, op)
}
