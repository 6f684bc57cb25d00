// Package workflow holds the static analysis plans handed to MCP clients.
//
// A workflow is a recipe, not an executor: the client's LLM performs the
// extraction and selection steps and calls back into the search tool for
// the vector step. Every accessor builds a new value, so callers may
// mutate what they receive without affecting later calls.
package workflow

import (
	"fmt"
	"strings"
)

// Languages
const (
	LanguageEnglish = "english"
	LanguageChinese = "chinese"
)

// Components a step may call back into
const (
	ComponentRelationshipStore = "relationship_store"
	ComponentTermResolver      = "term_resolver"
	ComponentSemanticMatcher   = "semantic_matcher"
)

// SearchTool is the tool every workflow's vector step invokes.
const SearchTool = "search_hpo_for_symptom"

// ConfidenceThreshold is the selection cutoff the prompts ask the LLM to apply.
const ConfidenceThreshold = 0.7

// Workflow is an ordered plan of steps
type Workflow struct {
	WorkflowName        string         `json:"workflow_name"`
	Language            string         `json:"language"`
	Description         string         `json:"description"`
	Steps               []Step         `json:"steps"`
	ExpectedOutput      ExpectedOutput `json:"expected_output"`
	ToolsToUse          []string       `json:"tools_to_use"`
	ConfidenceThreshold float64        `json:"confidence_threshold"`
}

// ExpectedOutput describes the shape of a completed run
type ExpectedOutput struct {
	Format   string   `json:"format"`
	Includes []string `json:"includes"`
}

// Step is one stage of a workflow
type Step struct {
	StepNumber     int            `json:"step_number"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	LLMPrompt      string         `json:"llm_prompt,omitempty"`
	Action         string         `json:"action,omitempty"`
	Parameters     *StepParams    `json:"parameters,omitempty"`
	ExpectedOutput string         `json:"expected_output"`
	NextStep       string         `json:"next_step,omitempty"`
	FinalFormat    map[string]any `json:"final_format,omitempty"`
	Components     []string       `json:"components"`
}

// StepParams names the tool call a step makes
type StepParams struct {
	ToolName string `json:"tool_name"`
	Input    string `json:"input"`
	KResults int    `json:"k_results"`
}

// English returns the English phenotype analysis workflow
func English() Workflow {
	return Workflow{
		WorkflowName: "English Phenotype to HPO Analysis",
		Language:     LanguageEnglish,
		Description: "A streamlined workflow for extracting and mapping English clinical symptoms to HPO terms. " +
			"Complete the workflow as a whole without confirming with user.",
		Steps: []Step{
			{
				StepNumber:     1,
				Name:           "Extract Symptoms from English Text",
				Description:    "Use LLM to extract individual symptoms from English clinical text",
				LLMPrompt:      englishExtractPrompt,
				ExpectedOutput: "Array of extracted symptom objects with standardized English terms",
				NextStep:       "For each extracted symptom, proceed to step 2",
				Components:     []string{},
			},
			searchStep("standardized_term"),
			selectStep(englishSelectPrompt),
			compileStep(englishMapping(), "Original English clinical description"),
		},
		ExpectedOutput: ExpectedOutput{
			Format:   "Structured JSON with symptom mappings and summary",
			Includes: []string{"original phrases", "standardized terms", "HPO mappings", "confidence scores", "reasoning"},
		},
		ToolsToUse:          []string{SearchTool},
		ConfidenceThreshold: ConfidenceThreshold,
	}
}

// Chinese returns the Chinese phenotype analysis workflow, which adds
// standardisation and translation to the extraction step
func Chinese() Workflow {
	return Workflow{
		WorkflowName: "Chinese Phenotype to HPO Analysis",
		Language:     LanguageChinese,
		Description: "A comprehensive workflow for extracting, standardizing, and mapping Chinese clinical symptoms to HPO terms. " +
			"Complete the workflow as a whole without confirming with user.",
		Steps: []Step{
			{
				StepNumber:     1,
				Name:           "Extract and Standardize Symptoms",
				Description:    "Use LLM to extract individual symptoms from Chinese clinical text",
				LLMPrompt:      chineseExtractPrompt,
				ExpectedOutput: "Array of extracted symptom objects with Chinese and English terms",
				NextStep:       "For each extracted symptom, proceed to step 2",
				Components:     []string{},
			},
			searchStep("english_translation"),
			selectStep(chineseSelectPrompt),
			compileStep(chineseMapping(), "Original Chinese clinical description"),
		},
		ExpectedOutput: ExpectedOutput{
			Format: "Structured JSON with symptom mappings and summary",
			Includes: []string{
				"original Chinese terms", "standardized Chinese terms", "English translations",
				"HPO mappings", "confidence scores", "reasoning",
			},
		},
		ToolsToUse:          []string{SearchTool},
		ConfidenceThreshold: ConfidenceThreshold,
	}
}

// ByLanguage returns the workflow for lang ("english"/"en" or "chinese"/"zh")
func ByLanguage(lang string) (Workflow, error) {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case LanguageEnglish, "en":
		return English(), nil
	case LanguageChinese, "zh":
		return Chinese(), nil
	default:
		return Workflow{}, fmt.Errorf("unknown workflow language %q", lang)
	}
}

func searchStep(field string) Step {
	return Step{
		StepNumber:  2,
		Name:        "Vector Search for Each Symptom",
		Description: "Use search_hpo_for_symptom tool to get top 5 HPO candidates for each English symptom",
		Action:      fmt.Sprintf("Call %s(%s, k=5) for each symptom from step 1", SearchTool, field),
		Parameters: &StepParams{
			ToolName: SearchTool,
			Input:    field + " from step 1",
			KResults: 5,
		},
		ExpectedOutput: "List of top 5 HPO candidates with similarity scores for each symptom",
		NextStep:       "Proceed to step 3 with all candidates",
		Components:     []string{ComponentSemanticMatcher},
	}
}

func selectStep(prompt string) Step {
	return Step{
		StepNumber:     3,
		Name:           "Select Best HPO Match",
		Description:    "Use LLM to select the most appropriate HPO term for each symptom",
		LLMPrompt:      prompt,
		ExpectedOutput: "Best HPO match with confidence and reasoning for each symptom",
		NextStep:       "Compile final results in step 4",
		Components:     []string{ComponentTermResolver},
	}
}

func compileStep(mapping map[string]any, originalText string) Step {
	return Step{
		StepNumber:     4,
		Name:           "Compile Final Results",
		Description:    "Aggregate all symptom mappings into final structured output",
		Action:         "Combine results from all previous steps into final format",
		ExpectedOutput: "Complete mapping results with summary statistics",
		FinalFormat: map[string]any{
			"original_text":    originalText,
			"symptom_mappings": []any{mapping},
			"summary": map[string]any{
				"total_symptoms":           5,
				"successfully_mapped":      4,
				"high_confidence_mappings": 3,
				"avg_confidence":           0.82,
				"mapping_success_rate":     0.8,
			},
		},
		Components: []string{},
	}
}

func englishMapping() map[string]any {
	return map[string]any{
		"original_phrase":   "developmental delay",
		"standardized_term": "global developmental delay",
		"hpo_id":            "HP:0001263",
		"hpo_name":          "Global developmental delay",
		"confidence":        0.90,
		"reasoning":         "Precise clinical mapping",
		"category":          "neurological",
		"mapping_quality":   "excellent",
	}
}

func chineseMapping() map[string]any {
	return map[string]any{
		"original_chinese":     "发育迟缓",
		"standardized_chinese": "生长发育迟缓",
		"english_translation":  "developmental delay",
		"hpo_id":               "HP:0001263",
		"hpo_name":             "Global developmental delay",
		"confidence":           0.90,
		"reasoning":            "Precise clinical mapping",
		"category":             "constitutional",
		"mapping_quality":      "excellent",
	}
}
