package nlp

// annotateRequest is the wire payload sent to the parser service.
type annotateRequest struct {
	Sentences  [][]string `json:"sentences"`
	Annotators string     `json:"annotators"`
}

// Dependency is one arc of a dependency parse. Head and Dependent are
// zero-based token indices within the sentence; Head == -1 marks the root.
type Dependency struct {
	Head      int    `json:"head"`
	Dependent int    `json:"dependent"`
	Relation  string `json:"relation"`
}

// Constituent is one labeled span of a constituency parse over the token
// range [Start, End).
type Constituent struct {
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// SentenceParse is the analysis of one sentence.
type SentenceParse struct {
	Tokens       []string      `json:"tokens"`
	Dependencies []Dependency  `json:"dependencies,omitempty"`
	Constituents []Constituent `json:"constituents,omitempty"`
}

// ParseResult is the full service response, one entry per input sentence.
type ParseResult struct {
	Sentences []SentenceParse `json:"sentences"`
}
