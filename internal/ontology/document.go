package ontology

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Document is the text embedded for one term
type Document struct {
	ID      string
	Label   string
	Content string
	Hash    string // SHA-256 of Content
}

// NewDocument composes the embedding text for t. Lines appear in a fixed
// order and empty sections are omitted, except the label line.
func NewDocument(t Term) Document {
	var b strings.Builder
	b.WriteString("ID: ")
	b.WriteString(t.ID)
	b.WriteString("\nLabel: ")
	b.WriteString(t.Label)

	if t.Definition != "" {
		b.WriteString("\nDefinition: ")
		b.WriteString(t.Definition)
	}
	if len(t.Synonyms) > 0 {
		b.WriteString("\nSynonyms: ")
		b.WriteString(strings.Join(t.Synonyms, ", "))
	}
	if len(t.Comments) > 0 {
		b.WriteString("\nComments: ")
		b.WriteString(strings.Join(t.Comments, " "))
	}

	content := b.String()
	sum := sha256.Sum256([]byte(content))
	return Document{
		ID:      t.ID,
		Label:   t.Label,
		Content: content,
		Hash:    hex.EncodeToString(sum[:]),
	}
}

// Documents composes a document per term, preserving order
func Documents(terms []Term) []Document {
	docs := make([]Document, len(terms))
	for i, t := range terms {
		docs[i] = NewDocument(t)
	}
	return docs
}
