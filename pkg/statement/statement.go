// Package statement defines the knowledge-base data model: RDF-like statements,
// the text chunks derived from them, and search results over them.
package statement

import (
	"errors"
	"fmt"
	"strings"
)

// RDFType is the canonical type predicate. The predicate alias "a" is rewritten
// to this URI on insert.
const RDFType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

// TypeAlias is the shorthand predicate accepted in place of RDFType.
const TypeAlias = "a"

// TermType is the RDF term kind of a statement's object.
type TermType string

const (
	NamedNode TermType = "NamedNode"
	BlankNode TermType = "BlankNode"
	Literal   TermType = "Literal"
	Quad      TermType = "Quad"
)

var (
	// ErrInvalidTermType is returned when a statement carries a term type
	// outside the known set.
	ErrInvalidTermType = errors.New("invalid term type")

	// ErrMissingField is returned when subject, predicate or object is empty.
	ErrMissingField = errors.New("missing required statement field")
)

// Valid reports whether t is one of the known term types.
func (t TermType) Valid() bool {
	switch t {
	case NamedNode, BlankNode, Literal, Quad:
		return true
	}
	return false
}

// Statement is a subject/predicate/object assertion, optionally scoped to a
// named-graph context. (Subject, Predicate, Object, Context) is unique.
type Statement struct {
	ID        int64    `json:"id"`
	Subject   string   `json:"subject"`
	Predicate string   `json:"predicate"`
	Object    string   `json:"object"`
	Context   string   `json:"context"`
	TermType  TermType `json:"term_type"`
	Language  string   `json:"language"`
	Datatype  string   `json:"datatype"`
}

// Normalize returns a copy of s ready for insertion: the "a" alias is expanded,
// an unset term type defaults to NamedNode, and the remaining fields are
// validated. Language and Datatype are already "" when absent.
func Normalize(s Statement) (Statement, error) {
	if s.Subject == "" || s.Predicate == "" || s.Object == "" {
		return s, ErrMissingField
	}

	if s.Predicate == TypeAlias {
		s.Predicate = RDFType
	}

	if s.TermType == "" {
		s.TermType = NamedNode
	}
	if !s.TermType.Valid() {
		return s, fmt.Errorf("%w: %q", ErrInvalidTermType, s.TermType)
	}

	return s, nil
}

// Pattern selects statements by exact match on every non-empty field.
// An empty field means "don't care"; the zero Pattern matches everything.
type Pattern struct {
	Subject   string `json:"subject,omitempty"`
	Predicate string `json:"predicate,omitempty"`
	Object    string `json:"object,omitempty"`
	Context   string `json:"context,omitempty"`
}

// Normalize expands the "a" alias so patterns match what was stored.
func (p Pattern) Normalize() Pattern {
	if p.Predicate == TypeAlias {
		p.Predicate = RDFType
	}
	return p
}

// Matches reports whether s satisfies every supplied field of p.
func (p Pattern) Matches(s Statement) bool {
	return (p.Subject == "" || p.Subject == s.Subject) &&
		(p.Predicate == "" || p.Predicate == s.Predicate) &&
		(p.Object == "" || p.Object == s.Object) &&
		(p.Context == "" || p.Context == s.Context)
}

// Chunk is a searchable text fragment derived from a statement.
// Embedding is nil when no embedding could be produced for Content.
type Chunk struct {
	ID          int64     `json:"id"`
	StatementID int64     `json:"statement_id"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// SearchResult is a hydrated statement carrying its fused relevance score.
type SearchResult struct {
	Statement
	Score float64 `json:"score"`
}

// LocalName returns the trailing segment of an IRI after the last '#' or '/'.
// Returns "" when iri has no such separator or ends in one.
func LocalName(iri string) string {
	if !strings.Contains(iri, "://") && !strings.HasPrefix(iri, "urn:") {
		return ""
	}
	i := strings.LastIndexAny(iri, "#/:")
	if i < 0 || i == len(iri)-1 {
		return ""
	}
	return iri[i+1:]
}
