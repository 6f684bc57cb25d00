package workflow

const englishExtractPrompt = `
You are a medical expert analyzing English clinical descriptions. Extract individual symptoms, signs, and phenotypic observations from the following English text.

For each symptom found, provide:
1. **original_phrase**: Exact phrase from the clinical text
2. **standardized_term**: Standard medical terminology in English
3. **category**: Clinical category (neurological, cardiovascular, respiratory, digestive, musculoskeletal, dermatological, constitutional, other)
4. **severity**: mild/moderate/severe/unknown
5. **confidence**: Your confidence in the extraction (0.0-1.0)

English Clinical Text: {english_text}

Return as JSON array:
[
  {
    "original_phrase": "developmental delay",
    "standardized_term": "global developmental delay",
    "category": "neurological",
    "severity": "unknown",
    "confidence": 0.95
  }
]
`

const chineseExtractPrompt = `
You are a medical expert analyzing Chinese clinical descriptions. Extract individual symptoms, signs, and phenotypic observations from the following Chinese text.

For each symptom found, provide:
1. **original_chinese**: Exact Chinese phrase from the text
2. **standardized_chinese**: Standard medical terminology in Chinese
3. **english_translation**: Precise English medical term
4. **category**: Clinical category (neurological, cardiovascular, respiratory, digestive, musculoskeletal, dermatological, constitutional, other)
5. **severity**: mild/moderate/severe/unknown
6. **confidence**: Your confidence in the extraction (0.0-1.0)

Chinese Clinical Text: {chinese_text}

Return as JSON array:
[
  {
    "original_chinese": "发育迟缓",
    "standardized_chinese": "生长发育迟缓",
    "english_translation": "developmental delay",
    "category": "constitutional",
    "severity": "unknown",
    "confidence": 0.95
  }
]
`

// selectionCriteria is shared by both selection prompts
const selectionCriteria = `
**HPO Candidates (from vector search):**
{hpo_candidates}

**Selection Criteria:**
1. Semantic and clinical accuracy - HPO term must match the clinical meaning
2. Appropriate level of specificity - Not too general, not too specific
3. Medical appropriateness - Clinically valid mapping
4. Confidence threshold: 0.7 - Only select if confidence >= 0.7

Select the BEST HPO term or return null if no term meets the threshold.
`

const englishSelectPrompt = `
You are a medical expert selecting the best HPO term for a clinical symptom.

**Symptom Information:**
- Original Phrase: {original_phrase}
- Standardized Term: {standardized_term}
- Category: {category}
- Severity: {severity}
` + selectionCriteria + `
Return JSON:
{
  "selected_hpo_id": "HP:0001263",
  "selected_hpo_name": "Global developmental delay",
  "confidence": 0.90,
  "reasoning": "The symptom 'developmental delay' maps precisely to 'Global developmental delay' which describes delayed achievement of developmental milestones.",
  "mapping_quality": "excellent"
}

If no suitable match: {"selected_hpo_id": null, "confidence": 0.0, "reasoning": "No HPO term meets the confidence threshold"}
`

const chineseSelectPrompt = `
You are a medical expert selecting the best HPO term for a clinical symptom.

**Symptom Information:**
- Original Chinese: {original_chinese}
- Standardized Chinese: {standardized_chinese}
- English Translation: {english_translation}
- Category: {category}
- Severity: {severity}
` + selectionCriteria + `
Return JSON:
{
  "selected_hpo_id": "HP:0001263",
  "selected_hpo_name": "Global developmental delay",
  "confidence": 0.90,
  "reasoning": "The symptom '发育迟缓' (developmental delay) maps precisely to 'Global developmental delay' which describes delayed achievement of developmental milestones.",
  "mapping_quality": "excellent"
}

If no suitable match: {"selected_hpo_id": null, "confidence": 0.0, "reasoning": "No HPO term meets the confidence threshold"}
`
