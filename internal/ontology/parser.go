package ontology

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoGraph is returned when the document holds no graphs
var ErrNoGraph = errors.New("obo graph document has no graphs")

// HPOPrefix is the identifier prefix of phenotype terms
const HPOPrefix = "HP:"

const purlBase = "http://purl.obolibrary.org/obo/"

// Term is an ontology class with its descriptive text
type Term struct {
	ID         string
	Label      string
	Definition string
	Synonyms   []string
	Comments   []string
	Deprecated bool
}

// Options controls which nodes Parse keeps
type Options struct {
	// IncludeDeprecated keeps obsolete classes
	IncludeDeprecated bool
	// AllPrefixes keeps classes from imported ontologies (UBERON, GO, ...)
	AllPrefixes bool
}

// ParseResult holds parsed terms and counts of what was skipped
type ParseResult struct {
	Terms   []Term
	Skipped int
}

type graphDocument struct {
	Graphs []graph `json:"graphs"`
}

type graph struct {
	Nodes []node `json:"nodes"`
}

type node struct {
	ID   string    `json:"id"`
	Lbl  string    `json:"lbl"`
	Type string    `json:"type"`
	Meta *nodeMeta `json:"meta"`
}

type nodeMeta struct {
	Definition *struct {
		Val string `json:"val"`
	} `json:"definition"`
	Synonyms []struct {
		Val string `json:"val"`
	} `json:"synonyms"`
	Comments   []string `json:"comments"`
	Deprecated bool     `json:"deprecated"`
}

// ParseFile reads an OBO graph JSON file such as hp.json
func ParseFile(path string, opts Options) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ontology: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f, opts)
}

// Parse decodes the first graph of an OBO graph document. Only CLASS nodes
// are kept; identifiers are converted from PURLs to CURIEs.
func Parse(r io.Reader, opts Options) (*ParseResult, error) {
	var doc graphDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode ontology: %w", err)
	}
	if len(doc.Graphs) == 0 {
		return nil, ErrNoGraph
	}

	nodes := doc.Graphs[0].Nodes
	result := &ParseResult{Terms: make([]Term, 0, len(nodes))}
	seen := make(map[string]struct{}, len(nodes))

	for _, n := range nodes {
		if n.Type != "" && n.Type != "CLASS" {
			result.Skipped++
			continue
		}

		t := n.term()
		if t.ID == "" || (!opts.AllPrefixes && !strings.HasPrefix(t.ID, HPOPrefix)) {
			result.Skipped++
			continue
		}
		if t.Deprecated && !opts.IncludeDeprecated {
			result.Skipped++
			continue
		}
		if _, dup := seen[t.ID]; dup {
			result.Skipped++
			continue
		}
		seen[t.ID] = struct{}{}
		result.Terms = append(result.Terms, t)
	}

	return result, nil
}

func (n node) term() Term {
	t := Term{ID: CURIE(n.ID), Label: n.Lbl}
	if n.Meta == nil {
		return t
	}
	if n.Meta.Definition != nil {
		t.Definition = n.Meta.Definition.Val
	}
	for _, s := range n.Meta.Synonyms {
		t.Synonyms = append(t.Synonyms, s.Val)
	}
	t.Comments = n.Meta.Comments
	t.Deprecated = n.Meta.Deprecated
	return t
}

// CURIE converts http://purl.obolibrary.org/obo/HP_0000001 to HP:0000001.
// Identifiers that are already compact are returned unchanged.
func CURIE(id string) string {
	local := strings.TrimPrefix(id, purlBase)
	if i := strings.LastIndex(local, "/"); i >= 0 {
		local = local[i+1:]
	}
	if strings.Contains(local, ":") {
		return local
	}
	prefix, suffix, ok := strings.Cut(local, "_")
	if !ok {
		return local
	}
	return prefix + ":" + suffix
}
