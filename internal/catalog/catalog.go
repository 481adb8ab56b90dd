// Package catalog holds the static competency model, section texts, motivation
// factors and default prompts. It is loaded once and treated as read-only.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embedded []byte

// Competency is one rated sub-competency of a section
type Competency struct {
	Label       string   `yaml:"label" json:"label"`
	Description string   `yaml:"description" json:"description"`
	Headers     []string `yaml:"headers" json:"-"`
}

// Section is one of the fixed competency groups
type Section struct {
	Key              string       `yaml:"key" json:"key"`
	Title            string       `yaml:"title" json:"title"`
	TextKey          string       `yaml:"text_key" json:"text_key"`
	TablePlaceholder string       `yaml:"table_placeholder" json:"table_placeholder"`
	ImagePlaceholder string       `yaml:"image_placeholder" json:"image_placeholder"`
	Competencies     []Competency `yaml:"competencies" json:"competencies"`
}

// Labels returns the sub-labels of the section in catalog order
func (s Section) Labels() []string {
	labels := make([]string, len(s.Competencies))
	for i, c := range s.Competencies {
		labels[i] = c.Label
	}
	return labels
}

// TextSection is a narrative generated at one wizard step
type TextSection struct {
	Key     string `yaml:"key" json:"key"`
	Title   string `yaml:"title" json:"title"`
	Step    int    `yaml:"step" json:"step"`
	Section string `yaml:"section" json:"section,omitempty"`
}

// MotivationFactor is a selectable driver of the candidate
type MotivationFactor struct {
	Key        string `yaml:"key" json:"key"`
	Label      string `yaml:"label" json:"label"`
	Definition string `yaml:"definition" json:"definition"`
}

// PromptDefault is the built-in version of a prompt template
type PromptDefault struct {
	Name      string `yaml:"name" json:"name"`
	MaxTokens int    `yaml:"max_tokens" json:"max_tokens"`
	Text      string `yaml:"text" json:"text"`
}

type document struct {
	Sections          []Section          `yaml:"sections"`
	Texts             []TextSection      `yaml:"texts"`
	MotivationFactors []MotivationFactor `yaml:"motivation_factors"`
	Prompts           []PromptDefault    `yaml:"prompts"`
}

// Catalog is the immutable static configuration table
type Catalog struct {
	sections []Section
	texts    []TextSection
	factors  []MotivationFactor
	prompts  []PromptDefault

	sectionIdx map[string]int
	textIdx    map[string]int
	factorIdx  map[string]int
	promptIdx  map[string]int
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the embedded catalog. It panics if the embedded file is invalid.
func Default() *Catalog {
	defaultOnce.Do(func() {
		cat, err := Load(embedded)
		if err != nil {
			panic(fmt.Sprintf("invalid embedded catalog: %v", err))
		}
		defaultCat = cat
	})
	return defaultCat
}

// Load parses and validates a catalog document
func Load(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{
		sections:   doc.Sections,
		texts:      doc.Texts,
		factors:    doc.MotivationFactors,
		prompts:    doc.Prompts,
		sectionIdx: make(map[string]int, len(doc.Sections)),
		textIdx:    make(map[string]int, len(doc.Texts)),
		factorIdx:  make(map[string]int, len(doc.MotivationFactors)),
		promptIdx:  make(map[string]int, len(doc.Prompts)),
	}

	for i, s := range c.sections {
		if s.Key == "" {
			return nil, fmt.Errorf("section %d has no key", i)
		}
		if _, dup := c.sectionIdx[s.Key]; dup {
			return nil, fmt.Errorf("duplicate section %q", s.Key)
		}
		if n := len(s.Competencies); n < 2 || n > 4 {
			return nil, fmt.Errorf("section %q must have 2-4 competencies, has %d", s.Key, n)
		}
		c.sectionIdx[s.Key] = i
	}

	for i, t := range c.texts {
		if _, dup := c.textIdx[t.Key]; dup {
			return nil, fmt.Errorf("duplicate text section %q", t.Key)
		}
		if t.Step < 2 || t.Step > 10 {
			return nil, fmt.Errorf("text section %q has step %d outside 2-10", t.Key, t.Step)
		}
		if t.Section != "" {
			if _, ok := c.sectionIdx[t.Section]; !ok {
				return nil, fmt.Errorf("text section %q refers to unknown section %q", t.Key, t.Section)
			}
		}
		c.textIdx[t.Key] = i
	}

	for i, f := range c.factors {
		if _, dup := c.factorIdx[f.Key]; dup {
			return nil, fmt.Errorf("duplicate motivation factor %q", f.Key)
		}
		c.factorIdx[f.Key] = i
	}

	for i, p := range c.prompts {
		if _, dup := c.promptIdx[p.Name]; dup {
			return nil, fmt.Errorf("duplicate prompt %q", p.Name)
		}
		c.promptIdx[p.Name] = i
	}

	return c, nil
}

// Sections returns the competency sections in catalog order
func (c *Catalog) Sections() []Section {
	out := make([]Section, len(c.sections))
	for i, s := range c.sections {
		out[i] = s
		out[i].Competencies = append([]Competency(nil), s.Competencies...)
	}
	return out
}

// Section looks up a competency section by key
func (c *Catalog) Section(key string) (Section, bool) {
	i, ok := c.sectionIdx[key]
	if !ok {
		return Section{}, false
	}
	s := c.sections[i]
	s.Competencies = append([]Competency(nil), s.Competencies...)
	return s, true
}

// Texts returns the narrative sections in step order
func (c *Catalog) Texts() []TextSection {
	return append([]TextSection(nil), c.texts...)
}

// Text looks up a narrative section by key
func (c *Catalog) Text(key string) (TextSection, bool) {
	i, ok := c.textIdx[key]
	if !ok {
		return TextSection{}, false
	}
	return c.texts[i], true
}

// TextForStep returns the narrative generated when the wizard enters step
func (c *Catalog) TextForStep(step int) (TextSection, bool) {
	for _, t := range c.texts {
		if t.Step == step {
			return t, true
		}
	}
	return TextSection{}, false
}

// MotivationFactors returns the motivation factor catalog
func (c *Catalog) MotivationFactors() []MotivationFactor {
	return append([]MotivationFactor(nil), c.factors...)
}

// MotivationFactor looks up a motivation factor by key
func (c *Catalog) MotivationFactor(key string) (MotivationFactor, bool) {
	i, ok := c.factorIdx[key]
	if !ok {
		return MotivationFactor{}, false
	}
	return c.factors[i], true
}

// Prompt returns the built-in prompt template with the given name
func (c *Catalog) Prompt(name string) (PromptDefault, bool) {
	i, ok := c.promptIdx[name]
	if !ok {
		return PromptDefault{}, false
	}
	return c.prompts[i], true
}

// Prompts returns all built-in prompt templates
func (c *Catalog) Prompts() []PromptDefault {
	return append([]PromptDefault(nil), c.prompts...)
}
