package iri

// Namespaces of the standard vocabularies.
const (
	NamespaceRDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NamespaceRDFS = "http://www.w3.org/2000/01/rdf-schema#"
	NamespaceOWL  = "http://www.w3.org/2002/07/owl#"
	NamespaceXSD  = "http://www.w3.org/2001/XMLSchema#"
)

// Well-known IRIs.
const (
	RDFType          = NamespaceRDF + "type"
	RDFSSubClassOf   = NamespaceRDFS + "subClassOf"
	RDFSLabel        = NamespaceRDFS + "label"
	OWLThing         = NamespaceOWL + "Thing"
	OWLNothing       = NamespaceOWL + "Nothing"
	OWLSameAs        = NamespaceOWL + "sameAs"
	OWLDifferentFrom = NamespaceOWL + "differentFrom"
	XSDString        = NamespaceXSD + "string"
	XSDInteger       = NamespaceXSD + "integer"
	XSDBoolean       = NamespaceXSD + "boolean"
)

// StandardPrefixes are registered in every new Registry.
var StandardPrefixes = map[string]string{
	"rdf":  NamespaceRDF,
	"rdfs": NamespaceRDFS,
	"owl":  NamespaceOWL,
	"xsd":  NamespaceXSD,
}

func (i *IRI) IsOWL() bool  { return i.Namespace() == NamespaceOWL }
func (i *IRI) IsRDF() bool  { return i.Namespace() == NamespaceRDF }
func (i *IRI) IsRDFS() bool { return i.Namespace() == NamespaceRDFS }
func (i *IRI) IsXSD() bool  { return i.Namespace() == NamespaceXSD }

// IsThing reports whether i is owl:Thing.
func (i *IRI) IsThing() bool { return i.value == OWLThing }

// IsNothing reports whether i is owl:Nothing.
func (i *IRI) IsNothing() bool { return i.value == OWLNothing }
