package ontology

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGraph = `{
  "graphs": [{
    "id": "http://purl.obolibrary.org/obo/hp.json",
    "nodes": [
      {
        "id": "http://purl.obolibrary.org/obo/HP_0001250",
        "lbl": "Seizure",
        "type": "CLASS",
        "meta": {
          "definition": {"val": "An intermittent abnormality of nervous system physiology."},
          "synonyms": [{"pred": "hasExactSynonym", "val": "Epileptic seizure"}, {"pred": "hasRelatedSynonym", "val": "Seizures"}],
          "comments": ["First comment.", "Second comment."]
        }
      },
      {"id": "http://purl.obolibrary.org/obo/HP_0000256", "lbl": "Macrocephaly", "type": "CLASS"},
      {"id": "http://purl.obolibrary.org/obo/HP_0000001", "lbl": "All", "type": "CLASS"},
      {"id": "http://purl.obolibrary.org/obo/HP_0000001", "lbl": "All again", "type": "CLASS"},
      {"id": "http://purl.obolibrary.org/obo/HP_0100000", "lbl": "obsolete thing", "type": "CLASS", "meta": {"deprecated": true}},
      {"id": "http://purl.obolibrary.org/obo/UBERON_0000033", "lbl": "head", "type": "CLASS"},
      {"id": "http://purl.obolibrary.org/obo/hp#has_synonym_type", "type": "PROPERTY"}
    ]
  }]
}`

func TestParse(t *testing.T) {
	res, err := Parse(strings.NewReader(sampleGraph), Options{})
	require.NoError(t, err)

	ids := make([]string, len(res.Terms))
	for i, term := range res.Terms {
		ids[i] = term.ID
	}
	assert.Equal(t, []string{"HP:0001250", "HP:0000256", "HP:0000001"}, ids)
	assert.Equal(t, 4, res.Skipped)

	seizure := res.Terms[0]
	assert.Equal(t, "Seizure", seizure.Label)
	assert.Equal(t, []string{"Epileptic seizure", "Seizures"}, seizure.Synonyms)
	assert.Len(t, seizure.Comments, 2)
}

func TestParseOptions(t *testing.T) {
	res, err := Parse(strings.NewReader(sampleGraph), Options{IncludeDeprecated: true, AllPrefixes: true})
	require.NoError(t, err)
	assert.Len(t, res.Terms, 5)
	assert.Equal(t, "UBERON:0000033", res.Terms[4].ID)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"graphs": []}`), Options{})
	assert.ErrorIs(t, err, ErrNoGraph)

	_, err = Parse(strings.NewReader(`not json`), Options{})
	assert.Error(t, err)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.json"), Options{})
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hp.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleGraph), 0o644))

	res, err := ParseFile(path, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Terms, 3)
}

func TestCURIE(t *testing.T) {
	tests := map[string]string{
		"http://purl.obolibrary.org/obo/HP_0000001": "HP:0000001",
		"HP:0000001": "HP:0000001",
		"http://purl.obolibrary.org/obo/UBERON_0000033": "UBERON:0000033",
		"plain": "plain",
	}
	for in, want := range tests {
		assert.Equal(t, want, CURIE(in), in)
	}
}

func TestNewDocument(t *testing.T) {
	res, err := Parse(strings.NewReader(sampleGraph), Options{})
	require.NoError(t, err)

	docs := Documents(res.Terms)
	require.Len(t, docs, 3)

	assert.Equal(t, "ID: HP:0001250\n"+
		"Label: Seizure\n"+
		"Definition: An intermittent abnormality of nervous system physiology.\n"+
		"Synonyms: Epileptic seizure, Seizures\n"+
		"Comments: First comment. Second comment.", docs[0].Content)
	assert.Equal(t, "ID: HP:0000256\nLabel: Macrocephaly", docs[1].Content)
	assert.Len(t, docs[0].Hash, 64)
	assert.NotEqual(t, docs[0].Hash, docs[1].Hash)
	assert.Equal(t, docs[0], NewDocument(res.Terms[0]))
}
