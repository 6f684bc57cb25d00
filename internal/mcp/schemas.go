package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/phenotype-mcp/internal/matcher"
)

// Tool names
const (
	ToolGenesByHPO        = "get_genes_by_hpo"
	ToolHPOByGene         = "get_hpo_by_gene"
	ToolDiseasesByGene    = "get_diseases_by_gene"
	ToolGenesByDisease    = "get_genes_by_disease"
	ToolDiseasesByHPO     = "get_diseases_by_hpo"
	ToolHPOByDisease      = "get_hpo_by_disease"
	ToolHPONameByID       = "get_hpo_name_by_id"
	ToolSearchSymptom     = "search_hpo_for_symptom"
	ToolEnglishWorkflow   = "english_phenotype_analysis_workflow"
	ToolChineseWorkflow   = "chinese_phenotype_analysis_workflow"
	ToolGetServerStatus   = "get_server_status"
	paramHPOID            = "hpo_id"
	paramGeneID           = "gene_id"
	paramDiseaseID        = "disease_id"
	paramEnglishSymptom   = "english_symptom"
	paramK                = "k"
	hpoIDDescription      = "HPO term identifier, e.g. 'HP:0000007'"
	geneIDDescription     = "NCBI gene identifier without prefix, e.g. '675'"
	diseaseIDDescription  = "Disease identifier with registry prefix, e.g. 'OMIM:243400'"
	workflowDescriptionEN = "Get structured workflow instructions for analyzing English phenotype descriptions. " +
		"Provides a step-by-step strategy to extract symptoms from English clinical text and map them to HPO terms. " +
		"COMPLETE THE WORKFLOW AS A WHOLE."
	workflowDescriptionZH = "Get structured workflow instructions for analyzing Chinese phenotype descriptions. " +
		"Provides a step-by-step strategy to extract, standardize and translate symptoms from Chinese clinical text " +
		"and map them to HPO terms. COMPLETE THE WORKFLOW AS A WHOLE."
)

// ToolChineseWorkflowAlias keeps the misspelled name existing clients call
const ToolChineseWorkflowAlias = "chinese_phenotype_anaylysis_workflow"

// singleIDTool returns a tool taking one required string identifier
func singleIDTool(name, description, param, paramDescription string) mcp.Tool {
	return mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				param: map[string]interface{}{
					"type":        "string",
					"description": paramDescription,
				},
			},
			Required: []string{param},
		},
	}
}

// noArgTool returns a parameterless tool
func noArgTool(name, description string) mcp.Tool {
	return mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

func genesByHPOTool() mcp.Tool {
	return singleIDTool(ToolGenesByHPO, "Get genes associated with a given HPO term.", paramHPOID, hpoIDDescription)
}

func hpoByGeneTool() mcp.Tool {
	return singleIDTool(ToolHPOByGene, "Get HPO terms associated with a given gene.", paramGeneID, geneIDDescription)
}

func diseasesByGeneTool() mcp.Tool {
	return singleIDTool(ToolDiseasesByGene, "Get diseases associated with a given gene.", paramGeneID, geneIDDescription)
}

func genesByDiseaseTool() mcp.Tool {
	return singleIDTool(ToolGenesByDisease, "Get genes associated with a given disease.", paramDiseaseID, diseaseIDDescription)
}

func diseasesByHPOTool() mcp.Tool {
	return singleIDTool(ToolDiseasesByHPO, "Get diseases annotated with a given HPO term.", paramHPOID, hpoIDDescription)
}

func hpoByDiseaseTool() mcp.Tool {
	return singleIDTool(ToolHPOByDisease, "Get HPO terms annotated to a given disease.", paramDiseaseID, diseaseIDDescription)
}

func hpoNameByIDTool() mcp.Tool {
	return singleIDTool(ToolHPONameByID, "Get the HPO term name for an HPO ID.", paramHPOID, hpoIDDescription)
}

// searchSymptomTool returns the tool definition for search_hpo_for_symptom
func searchSymptomTool() mcp.Tool {
	return mcp.Tool{
		Name: ToolSearchSymptom,
		Description: "Search HPO terms for a single English symptom or medical term (workflow step 2). " +
			"Returns the top K candidates with similarity scores; scores of 0.7 and above are usually reliable.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				paramEnglishSymptom: map[string]interface{}{
					"type":        "string",
					"description": "Single English symptom or medical term",
				},
				paramK: map[string]interface{}{
					"type":        "integer",
					"description": "Number of top candidates to return (1-100)",
					"default":     matcher.DefaultK,
					"minimum":     1,
					"maximum":     matcher.MaxK,
				},
			},
			Required: []string{paramEnglishSymptom},
		},
	}
}

func englishWorkflowTool() mcp.Tool {
	return noArgTool(ToolEnglishWorkflow, workflowDescriptionEN)
}

func chineseWorkflowTool() mcp.Tool {
	return noArgTool(ToolChineseWorkflow, workflowDescriptionZH)
}

func chineseWorkflowAliasTool() mcp.Tool {
	return noArgTool(ToolChineseWorkflowAlias,
		workflowDescriptionZH+" Alias of "+ToolChineseWorkflow+".")
}

func getServerStatusTool() mcp.Tool {
	return noArgTool(ToolGetServerStatus,
		"Get server status: database availability and table counts, vector index and credential state.")
}
