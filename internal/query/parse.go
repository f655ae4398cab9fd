package query

import (
	"fmt"
	"strconv"
	"strings"

	"owlreasoner/internal/errs"
	"owlreasoner/internal/iri"
	"owlreasoner/internal/owl"
)

// ParseTerm reads one term in a Turtle-like notation: ?var, <full-iri>,
// prefix:local, "literal", "literal"@lang, "literal"^^prefix:type, integers,
// true/false, and "a" for rdf:type.
func ParseTerm(reg *iri.Registry, tok string) (Term, error) {
	switch {
	case tok == "":
		return Term{}, errs.New(errs.KindInvalidQuery, "query.ParseTerm", "empty term")
	case strings.HasPrefix(tok, "?"):
		if len(tok) == 1 {
			return Term{}, errs.New(errs.KindInvalidQuery, "query.ParseTerm", "unnamed variable")
		}
		return Var(tok), nil
	case tok == "a":
		i, err := reg.GetOrCreate(iri.RDFType)
		if err != nil {
			return Term{}, err
		}
		return IRI(i), nil
	case strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">"):
		i, err := reg.GetOrCreate(tok[1 : len(tok)-1])
		if err != nil {
			return Term{}, err
		}
		return IRI(i), nil
	case strings.HasPrefix(tok, `"`):
		return parseLiteral(reg, tok)
	case tok == "true" || tok == "false":
		dt, err := reg.GetOrCreate(iri.XSDBoolean)
		if err != nil {
			return Term{}, err
		}
		return Lit(owl.Literal{Lexical: tok, Datatype: dt}), nil
	}
	if _, err := strconv.ParseInt(tok, 10, 64); err == nil {
		dt, err := reg.GetOrCreate(iri.XSDInteger)
		if err != nil {
			return Term{}, err
		}
		return Lit(owl.Literal{Lexical: tok, Datatype: dt}), nil
	}
	i, err := reg.Expand(tok)
	if err != nil {
		return Term{}, err
	}
	return IRI(i), nil
}

func parseLiteral(reg *iri.Registry, tok string) (Term, error) {
	end := strings.LastIndex(tok, `"`)
	if end <= 0 {
		return Term{}, errs.New(errs.KindInvalidQuery, "query.ParseTerm", "unterminated literal %s", tok)
	}
	lexical, err := strconv.Unquote(tok[:end+1])
	if err != nil {
		return Term{}, errs.New(errs.KindInvalidQuery, "query.ParseTerm", "bad literal %s: %v", tok, err)
	}
	lit := owl.Literal{Lexical: lexical}
	switch rest := tok[end+1:]; {
	case rest == "":
		lit.Datatype, err = reg.GetOrCreate(iri.XSDString)
	case strings.HasPrefix(rest, "@"):
		lit.Lang = rest[1:]
	case strings.HasPrefix(rest, "^^"):
		var dt Term
		dt, err = ParseTerm(reg, rest[2:])
		if err == nil && dt.Kind != TermIRI {
			err = errs.New(errs.KindInvalidQuery, "query.ParseTerm", "datatype must be an IRI")
		}
		lit.Datatype = dt.IRI
	default:
		err = errs.New(errs.KindInvalidQuery, "query.ParseTerm", "unexpected %q after literal", rest)
	}
	if err != nil {
		return Term{}, err
	}
	return Lit(lit), nil
}

// ParseTriple reads "subject predicate object".
func ParseTriple(reg *iri.Registry, line string) (TriplePattern, error) {
	toks, err := tokenize(line)
	if err != nil {
		return TriplePattern{}, err
	}
	if len(toks) != 3 {
		return TriplePattern{}, errs.New(errs.KindInvalidQuery, "query.ParseTriple",
			"expected 3 terms, got %d in %q", len(toks), line)
	}
	var terms [3]Term
	for i, tok := range toks {
		if terms[i], err = ParseTerm(reg, tok); err != nil {
			return TriplePattern{}, fmt.Errorf("parse %q: %w", line, err)
		}
	}
	return Triple(terms[0], terms[1], terms[2]), nil
}

// tokenize splits on whitespace outside double quotes.
func tokenize(line string) ([]string, error) {
	var toks []string
	var cur strings.Builder
	inQuote, escaped := false, false
	for _, r := range strings.TrimSpace(line) {
		switch {
		case escaped:
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case !inQuote && (r == ' ' || r == '\t'):
			if cur.Len() > 0 {
				toks = append(toks, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteRune(r)
	}
	if inQuote {
		return nil, errs.New(errs.KindInvalidQuery, "query.ParseTriple", "unterminated literal in %q", line)
	}
	if cur.Len() > 0 {
		toks = append(toks, cur.String())
	}
	return toks, nil
}
