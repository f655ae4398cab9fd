package owl

import (
	"strconv"

	"owlreasoner/internal/iri"
)

// Literal is a data value: a lexical form with a datatype and optional
// language tag.
type Literal struct {
	Lexical  string
	Datatype *iri.IRI
	Lang     string
}

// Key is a canonical rendering of the literal.
func (l Literal) Key() string {
	s := strconv.Quote(l.Lexical)
	if l.Lang != "" {
		return s + "@" + l.Lang
	}
	if l.Datatype != nil {
		return s + "^^<" + l.Datatype.String() + ">"
	}
	return s
}

// Equal compares lexical form, datatype handle and language tag.
func (l Literal) Equal(other Literal) bool {
	return l.Lexical == other.Lexical && l.Datatype == other.Datatype && l.Lang == other.Lang
}
