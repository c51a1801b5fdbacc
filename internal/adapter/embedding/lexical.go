package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// LexicalDims is the width of lexical embedding vectors.
const LexicalDims = 1024

// Lexical embeds text as hashed whole-token and character-trigram counts.
// It needs no model files or network, so two strings are similar exactly when
// they share words or word fragments ("battery" ~ "battery - simple assault").
type Lexical struct{}

// NewLexical returns the offline embedder.
func NewLexical() *Lexical {
	return &Lexical{}
}

// Embed never fails. Text without letters or digits yields an all-zero vector.
func (Lexical) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, LexicalDims)
	for _, tok := range tokenize(text) {
		vec[bucket("w:"+tok)]++

		runes := []rune("#" + tok + "#")
		for i := 0; i+3 <= len(runes); i++ {
			vec[bucket("g:"+string(runes[i:i+3]))]++
		}
	}
	return vec, nil
}

// Name identifies the engine in logs.
func (Lexical) Name() string {
	return "lexical"
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func bucket(feature string) int {
	h := fnv.New32a()
	h.Write([]byte(feature)) //nolint:errcheck // hash writes never fail
	return int(h.Sum32() % LexicalDims)
}
