package statement_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kb/pkg/statement"
)

var _ = Describe("Normalize", func() {
	It("rewrites the type alias", func() {
		s, err := statement.Normalize(statement.Statement{
			Subject:   "http://example.org/alice",
			Predicate: "a",
			Object:    "http://example.org/Person",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Predicate).To(Equal(statement.RDFType))
	})

	It("leaves other predicates untouched", func() {
		s, err := statement.Normalize(statement.Statement{
			Subject:   "s",
			Predicate: "http://example.org/a",
			Object:    "o",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Predicate).To(Equal("http://example.org/a"))
	})

	It("defaults the term type to NamedNode", func() {
		s, err := statement.Normalize(statement.Statement{Subject: "s", Predicate: "p", Object: "o"})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.TermType).To(Equal(statement.NamedNode))
		Expect(s.Language).To(BeEmpty())
		Expect(s.Datatype).To(BeEmpty())
	})

	DescribeTable("term types",
		func(t statement.TermType, valid bool) {
			Expect(t.Valid()).To(Equal(valid))
			_, err := statement.Normalize(statement.Statement{Subject: "s", Predicate: "p", Object: "o", TermType: t})
			if valid {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(err).To(MatchError(statement.ErrInvalidTermType))
			}
		},
		Entry("NamedNode", statement.NamedNode, true),
		Entry("BlankNode", statement.BlankNode, true),
		Entry("Literal", statement.Literal, true),
		Entry("Quad", statement.Quad, true),
		Entry("SPARQL variables", statement.TermType("Variable"), false),
		Entry("unknown", statement.TermType("Bogus"), false),
	)

	It("rejects missing fields", func() {
		_, err := statement.Normalize(statement.Statement{Subject: "s", Predicate: "p"})
		Expect(err).To(MatchError(statement.ErrMissingField))
	})
})

var _ = Describe("Pattern", func() {
	s := statement.Statement{Subject: "s1", Predicate: statement.RDFType, Object: "o1", Context: "g"}

	It("matches everything when empty", func() {
		Expect(statement.Pattern{}.Matches(s)).To(BeTrue())
	})

	It("requires every supplied field", func() {
		Expect(statement.Pattern{Subject: "s1", Object: "o1"}.Matches(s)).To(BeTrue())
		Expect(statement.Pattern{Subject: "s1", Object: "o2"}.Matches(s)).To(BeFalse())
	})

	It("expands the alias on normalize", func() {
		Expect(statement.Pattern{Predicate: "a"}.Normalize().Matches(s)).To(BeTrue())
	})
})

var _ = Describe("LocalName", func() {
	DescribeTable("extracts the trailing segment",
		func(iri, want string) {
			Expect(statement.LocalName(iri)).To(Equal(want))
		},
		Entry("slash", "http://example.org/Person", "Person"),
		Entry("hash", "http://www.w3.org/1999/02/22-rdf-syntax-ns#type", "type"),
		Entry("urn", "urn:isbn:12345", "12345"),
		Entry("plain text", "Banana", ""),
		Entry("trailing slash", "http://example.org/", ""),
	)
})

var _ = Describe("Chunker", func() {
	It("returns the object as a single chunk when it fits", func() {
		c := statement.NewChunker(0)
		chunks := c.Derive(statement.Statement{Object: "Artificial Intelligence", TermType: statement.Literal})
		Expect(chunks).To(Equal([]string{"Artificial Intelligence"}))
	})

	It("appends the split local name of IRI objects", func() {
		c := statement.NewChunker(0)
		chunks := c.Derive(statement.Statement{Object: "http://example.org/ArtificialIntelligence", TermType: statement.NamedNode})
		Expect(chunks).To(HaveLen(1))
		Expect(chunks[0]).To(HaveSuffix("Artificial Intelligence"))
	})

	It("splits long literals into overlapping windows", func() {
		words := make([]string, 50)
		for i := range words {
			words[i] = "w"
		}
		c := statement.NewChunker(20)
		chunks := c.Derive(statement.Statement{Object: strings.Join(words, " "), TermType: statement.Literal})
		Expect(len(chunks)).To(BeNumerically(">", 2))
		for _, chunk := range chunks {
			Expect(len(strings.Fields(chunk))).To(BeNumerically("<=", 20))
		}
	})

	It("prefers sentence boundaries", func() {
		text := "one two three four five six seven. eight nine ten eleven twelve"
		c := statement.NewChunker(10)
		chunks := c.Derive(statement.Statement{Object: text, TermType: statement.Literal})
		Expect(chunks[0]).To(HaveSuffix("seven."))
	})
})
