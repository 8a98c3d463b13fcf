// Copyright 2026 The KrishiMitra Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package knowledge holds the static, language-keyed fallback content served
// when every live-model option is exhausted. Selection is deliberately
// random rather than symptom-matched: the goal is plausible offline advice,
// not precision — accuracy rests entirely on the live model being reachable.
package knowledge

import (
	_ "embed"
	"fmt"
	"math/rand"

	"github.com/goccy/go-yaml"
)

//go:embed entries.yaml
var entriesYAML []byte

// Entry is one pre-written diagnosis in the fallback table.
type Entry struct {
	// Language is the BCP-47-ish tag of the entry: "en", "hi", or "mr".
	Language string `yaml:"language"`

	// Keywords describe the symptom cluster the entry was written for.
	// They are informational; no matching against request content occurs.
	Keywords []string `yaml:"keywords"`

	// Diagnosis is the markdown advisory text.
	Diagnosis string `yaml:"diagnosis"`
}

type table struct {
	Entries      []Entry           `yaml:"entries"`
	DegradedChat map[string]string `yaml:"degradedChat"`
}

// Base is the offline knowledge base, loaded once at startup from the
// embedded table. Read-only at runtime.
type Base struct {
	byLanguage   map[string][]Entry
	degradedChat map[string]string
	defaultLang  string

	// intn is injectable for deterministic tests.
	intn func(n int) int
}

// NewBase parses the embedded table. defaultLanguage is used when a request
// carries an unrecognized language tag.
func NewBase(defaultLanguage string) (*Base, error) {
	var t table
	if err := yaml.Unmarshal(entriesYAML, &t); err != nil {
		return nil, fmt.Errorf("knowledge: failed to parse embedded table: %w", err)
	}
	if len(t.Entries) == 0 {
		return nil, fmt.Errorf("knowledge: embedded table has no entries")
	}

	byLanguage := make(map[string][]Entry)
	for _, e := range t.Entries {
		byLanguage[e.Language] = append(byLanguage[e.Language], e)
	}
	if defaultLanguage == "" || byLanguage[defaultLanguage] == nil {
		defaultLanguage = "en"
	}

	return &Base{
		byLanguage:   byLanguage,
		degradedChat: t.DegradedChat,
		defaultLang:  defaultLanguage,
		intn:         rand.Intn,
	}, nil
}

// Languages returns the language tags present in the table.
func (b *Base) Languages() []string {
	langs := make([]string, 0, len(b.byLanguage))
	for lang := range b.byLanguage {
		langs = append(langs, lang)
	}
	return langs
}

// Diagnosis returns a uniformly random pre-written diagnosis for the
// language, falling back to the default language for unrecognized tags.
func (b *Base) Diagnosis(language string) string {
	entries, ok := b.byLanguage[language]
	if !ok || len(entries) == 0 {
		entries = b.byLanguage[b.defaultLang]
	}
	return entries[b.intn(len(entries))].Diagnosis
}

// DegradedChatMessage returns the static degraded-service message for the
// chat path in the given language.
func (b *Base) DegradedChatMessage(language string) string {
	if msg, ok := b.degradedChat[language]; ok {
		return msg
	}
	return b.degradedChat[b.defaultLang]
}
