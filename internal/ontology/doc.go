// Package ontology reads the HPO release in OBO graph JSON form (hp.json)
// and composes the per-term documents the vector index is built from.
//
// # Basic Usage
//
//	res, err := ontology.ParseFile("data/hp.json", ontology.Options{})
//	if err != nil {
//	    return err
//	}
//	docs := ontology.Documents(res.Terms)
//
// A document reads:
//
//	ID: HP:0001250
//	Label: Seizure
//	Definition: A seizure is an intermittent abnormality of nervous system physiology...
//	Synonyms: Epileptic seizure, Seizures
//	Comments: ...
package ontology
