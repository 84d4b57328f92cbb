package index

// Mapping describes the analysis settings and field mappings of an index.
type Mapping struct {
	Settings   *Settings        `json:"settings,omitempty"`
	Properties map[string]Field `json:"properties"`
}

// Field describes how a single document field is indexed.
type Field struct {
	Type       string           `json:"type,omitempty"`
	Analyzer   string           `json:"analyzer,omitempty"`
	Index      *bool            `json:"index,omitempty"`
	Tree       string           `json:"tree,omitempty"`
	Precision  string           `json:"precision,omitempty"`
	Properties map[string]Field `json:"properties,omitempty"`
}

// Settings holds the index-level settings sent when creating the index.
type Settings struct {
	Analysis *Analysis `json:"analysis,omitempty"`
}

// Analysis declares custom analyzers and the tokenizers they use.
type Analysis struct {
	Analyzer  map[string]Analyzer  `json:"analyzer,omitempty"`
	Tokenizer map[string]Tokenizer `json:"tokenizer,omitempty"`
}

// Analyzer is a custom analyzer definition.
type Analyzer struct {
	Type      string   `json:"type,omitempty"`
	Tokenizer string   `json:"tokenizer"`
	Filter    []string `json:"filter,omitempty"`
}

// Tokenizer is a tokenizer definition. Only n-gram tokenizers use the gram
// bounds and token character classes.
type Tokenizer struct {
	Type       string   `json:"type"`
	MinGram    int      `json:"min_gram,omitempty"`
	MaxGram    int      `json:"max_gram,omitempty"`
	TokenChars []string `json:"token_chars,omitempty"`
}

// HasAnalysis returns true if the mapping declares any analyzers.
func (m *Mapping) HasAnalysis() bool {
	return m.Settings != nil && m.Settings.Analysis != nil && len(m.Settings.Analysis.Analyzer) > 0
}
