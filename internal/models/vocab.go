package models

// Reserved vocabulary slots. Every vocabulary starts with these four entries.
const (
	PadID = 0
	SOSID = 1
	EOSID = 2
	UnkID = 3
)

// Reserved token strings.
const (
	PadToken = "<pad>"
	SOSToken = "<s>"
	EOSToken = "</s>"
	UnkToken = "<unk>"
)

// Vocabulary maps token strings to integer ids. Immutable once built and
// shared by reference across graph construction and decoding; it is never
// copied per example.
type Vocabulary struct {
	tokens []string
	index  map[string]int
}

// NewVocabulary builds a vocabulary from the given tokens. Duplicates are
// ignored; the four reserved tokens always occupy ids 0-3.
func NewVocabulary(tokens []string) *Vocabulary {
	v := &Vocabulary{index: make(map[string]int, len(tokens)+4)}

	for _, t := range []string{PadToken, SOSToken, EOSToken, UnkToken} {
		v.index[t] = len(v.tokens)
		v.tokens = append(v.tokens, t)
	}

	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, ok := v.index[t]; ok {
			continue
		}
		v.index[t] = len(v.tokens)
		v.tokens = append(v.tokens, t)
	}

	return v
}

// Size returns the number of entries including reserved tokens.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// Lookup returns the id for the token, or UnkID when absent.
func (v *Vocabulary) Lookup(token string) int {
	if id, ok := v.index[token]; ok {
		return id
	}

	return UnkID
}

// Contains reports whether the token is present.
func (v *Vocabulary) Contains(token string) bool {
	_, ok := v.index[token]
	return ok
}

// Token returns the string for the given id.
func (v *Vocabulary) Token(id int) (string, error) {
	if id < 0 || id >= len(v.tokens) {
		return "", InvalidInputf("token id %d out of range [0, %d)", id, len(v.tokens))
	}

	return v.tokens[id], nil
}

// Tokens returns a copy of all entries in id order, for persistence.
func (v *Vocabulary) Tokens() []string {
	out := make([]string, len(v.tokens))
	copy(out, v.tokens)

	return out
}

// ExtendedVocab overlays a per-example out-of-vocabulary extension on a base
// vocabulary. Source-graph tokens absent from the base receive temporary ids
// at the top of the id space so the copy mechanism can emit them verbatim.
// Built once per example during graph construction, then read-only.
type ExtendedVocab struct {
	base  *Vocabulary
	extra []string
	index map[string]int
}

// NewExtendedVocab wraps the given base vocabulary.
func NewExtendedVocab(base *Vocabulary) *ExtendedVocab {
	return &ExtendedVocab{base: base, index: make(map[string]int)}
}

// Base returns the wrapped vocabulary.
func (e *ExtendedVocab) Base() *Vocabulary { return e.base }

// Extend returns the id for the token, registering it as an extension entry
// when it is not in the base vocabulary.
func (e *ExtendedVocab) Extend(token string) int {
	if e.base.Contains(token) {
		return e.base.Lookup(token)
	}

	if id, ok := e.index[token]; ok {
		return id
	}

	id := e.base.Size() + len(e.extra)
	e.index[token] = id
	e.extra = append(e.extra, token)

	return id
}

// Size returns the combined base plus extension size.
func (e *ExtendedVocab) Size() int { return e.base.Size() + len(e.extra) }

// ExtraCount returns the number of extension entries.
func (e *ExtendedVocab) ExtraCount() int { return len(e.extra) }

// Token resolves an id from either the base or the extension range.
func (e *ExtendedVocab) Token(id int) (string, error) {
	if id < e.base.Size() {
		return e.base.Token(id)
	}

	pos := id - e.base.Size()
	if pos >= len(e.extra) {
		return "", InvalidInputf("token id %d out of range [0, %d)", id, e.Size())
	}

	return e.extra[pos], nil
}
