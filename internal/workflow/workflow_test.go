package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowShape(t *testing.T) {
	tests := []struct {
		name     string
		wf       Workflow
		language string
		input    string
	}{
		{"english", English(), LanguageEnglish, "standardized_term from step 1"},
		{"chinese", Chinese(), LanguageChinese, "english_translation from step 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := tt.wf
			assert.Equal(t, tt.language, wf.Language)
			assert.Equal(t, []string{SearchTool}, wf.ToolsToUse)
			assert.Equal(t, 0.7, wf.ConfidenceThreshold)
			require.Len(t, wf.Steps, 4)

			for i, s := range wf.Steps {
				assert.Equal(t, i+1, s.StepNumber)
				assert.NotEmpty(t, s.Name)
				assert.NotEmpty(t, s.ExpectedOutput)
				assert.NotNil(t, s.Components)
			}

			assert.NotEmpty(t, wf.Steps[0].LLMPrompt)
			require.NotNil(t, wf.Steps[1].Parameters)
			assert.Equal(t, tt.input, wf.Steps[1].Parameters.Input)
			assert.Equal(t, 5, wf.Steps[1].Parameters.KResults)
			assert.Equal(t, []string{ComponentSemanticMatcher}, wf.Steps[1].Components)
			assert.Contains(t, wf.Steps[2].LLMPrompt, "Confidence threshold: 0.7")
			assert.NotNil(t, wf.Steps[3].FinalFormat)
		})
	}
}

func TestChinesePromptsCarryTranslation(t *testing.T) {
	wf := Chinese()
	assert.Contains(t, wf.Steps[0].LLMPrompt, "english_translation")
	assert.Contains(t, wf.Steps[2].LLMPrompt, "{standardized_chinese}")
	assert.NotContains(t, English().Steps[0].LLMPrompt, "english_translation")
}

func TestFreshCopies(t *testing.T) {
	a := English()
	a.Steps[0].Name = "mutated"
	a.ToolsToUse[0] = "other"
	a.Steps[3].FinalFormat["original_text"] = "changed"

	b := English()
	assert.Equal(t, "Extract Symptoms from English Text", b.Steps[0].Name)
	assert.Equal(t, SearchTool, b.ToolsToUse[0])
	assert.Equal(t, "Original English clinical description", b.Steps[3].FinalFormat["original_text"])
}

func TestByLanguage(t *testing.T) {
	wf, err := ByLanguage("ZH")
	require.NoError(t, err)
	assert.Equal(t, LanguageChinese, wf.Language)

	wf, err = ByLanguage("english")
	require.NoError(t, err)
	assert.Equal(t, LanguageEnglish, wf.Language)

	_, err = ByLanguage("klingon")
	assert.Error(t, err)
}

func TestWorkflowJSON(t *testing.T) {
	raw, err := json.Marshal(English())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "English Phenotype to HPO Analysis", decoded["workflow_name"])

	steps := decoded["steps"].([]any)
	first := steps[0].(map[string]any)
	assert.NotContains(t, first, "parameters")
	assert.NotContains(t, first, "final_format")
	second := steps[1].(map[string]any)
	assert.NotContains(t, second, "llm_prompt")
}
