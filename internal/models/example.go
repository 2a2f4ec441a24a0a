package models

// Example is one tokenized input to the pipeline, optionally split into
// sentences for multi-sentence graph construction.
type Example struct {
	Tokens       []string
	SentenceLens []int // tokens per sentence; empty means one sentence
}

// Validate checks that the example is well formed.
func (e *Example) Validate() error {
	if len(e.Tokens) == 0 {
		return InvalidInputf("example has no tokens")
	}

	for i, t := range e.Tokens {
		if t == "" {
			return InvalidInputf("empty token at position %d", i)
		}
	}

	if len(e.SentenceLens) > 0 {
		total := 0
		for i, n := range e.SentenceLens {
			if n <= 0 {
				return InvalidInputf("sentence %d has non-positive length %d", i, n)
			}
			total += n
		}

		if total != len(e.Tokens) {
			return InvalidInputf("sentence lengths sum to %d, want %d", total, len(e.Tokens))
		}
	}

	return nil
}

// Sentences splits the tokens by sentence boundary. A single slice containing
// all tokens is returned when no boundaries are set.
func (e *Example) Sentences() [][]string {
	if len(e.SentenceLens) == 0 {
		return [][]string{e.Tokens}
	}

	out := make([][]string, 0, len(e.SentenceLens))
	start := 0
	for _, n := range e.SentenceLens {
		out = append(out, e.Tokens[start:start+n])
		start += n
	}

	return out
}
