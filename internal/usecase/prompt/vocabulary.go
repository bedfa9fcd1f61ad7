package prompt

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"a2a-router/internal/domain"
)

// DomainEntry is one domain category with the keywords its skills declare.
type DomainEntry struct {
	Category    string
	Description string
	Keywords    []string
}

// SkillEntry is one skill of the catalog with its owning agent.
type SkillEntry struct {
	ID                 string
	Name               string
	Description        string
	Domain             string
	Keywords           []string
	ConnectionPatterns []string
	AgentID            string
	AgentName          string
	AgentDescription   string
	Conversational     bool
}

// ContextCategory groups entity examples for context distillation.
type ContextCategory struct {
	Label    string
	Examples []string
}

// Vocabulary is the registry-derived material the prompts list. It is
// rebuilt whole on every registration and never mutated afterwards.
type Vocabulary struct {
	Domains            []DomainEntry
	ConnectionPatterns []string
	Skills             []SkillEntry
	ContextCategories  []ContextCategory

	entityBySkill map[string][]domain.EntityType
}

// fallbackEntityRules is used when no agent declares any entity type.
var fallbackEntityRules = []domain.EntityType{
	{Name: "chat_type", Description: "kind of small talk", Examples: []string{"greeting", "thanks", "help", "question"}},
	{Name: "topic", Description: "subject of the question", Examples: []string{"features", "usage", "help", "explanation"}},
	{Name: "intent", Description: "conversational intent", Examples: []string{"greeting", "help", "question", "thanks"}},
}

const maxConnectionExamples = 5

// BuildVocabulary derives a Vocabulary from agents in registration order.
// When several agents declare the same skill id the first one is kept.
func BuildVocabulary(agents []domain.AgentDescriptor) *Vocabulary {
	v := &Vocabulary{entityBySkill: make(map[string][]domain.EntityType)}
	domainIdx := make(map[string]int)
	patterns := make(map[string]bool)

	for _, a := range agents {
		for _, s := range a.Skills {
			if _, dup := v.entityBySkill[s.ID]; dup {
				continue
			}
			v.entityBySkill[s.ID] = s.EntityTypes
			v.Skills = append(v.Skills, SkillEntry{
				ID:                 s.ID,
				Name:               s.Name,
				Description:        s.Description,
				Domain:             s.Domain(),
				Keywords:           s.Keywords,
				ConnectionPatterns: s.ConnectionPatterns,
				AgentID:            a.ID,
				AgentName:          a.Name,
				AgentDescription:   a.Description,
				Conversational:     s.IsConversational(),
			})

			if s.DomainCategory != "" && len(s.Keywords) > 0 {
				if i, ok := domainIdx[s.DomainCategory]; ok {
					for _, kw := range s.Keywords {
						if !slices.Contains(v.Domains[i].Keywords, kw) {
							v.Domains[i].Keywords = append(v.Domains[i].Keywords, kw)
						}
					}
				} else {
					domainIdx[s.DomainCategory] = len(v.Domains)
					v.Domains = append(v.Domains, DomainEntry{
						Category:    s.DomainCategory,
						Description: s.Description,
						Keywords:    slices.Clone(s.Keywords),
					})
				}
			}
			for _, p := range s.ConnectionPatterns {
				patterns[p] = true
			}
		}
	}

	for p := range patterns {
		v.ConnectionPatterns = append(v.ConnectionPatterns, p)
	}
	slices.Sort(v.ConnectionPatterns)
	v.ContextCategories = buildContextCategories(v)
	return v
}

// Skill returns the catalog entry for id.
func (v *Vocabulary) Skill(id string) (SkillEntry, bool) {
	for _, s := range v.Skills {
		if s.ID == id {
			return s, true
		}
	}
	return SkillEntry{}, false
}

// HasSkill reports whether id is in the catalog.
func (v *Vocabulary) HasSkill(id string) bool {
	_, ok := v.Skill(id)
	return ok
}

// ConversationalDomains returns the domain categories of small-talk skills.
func (v *Vocabulary) ConversationalDomains() []string {
	var out []string
	for _, s := range v.Skills {
		if s.Conversational && s.Domain != "" && !slices.Contains(out, s.Domain) {
			out = append(out, s.Domain)
		}
	}
	return out
}

// ConversationalSkills returns the ids of small-talk skills.
func (v *Vocabulary) ConversationalSkills() []string {
	var out []string
	for _, s := range v.Skills {
		if s.Conversational {
			out = append(out, s.ID)
		}
	}
	return out
}

// IsConversationalDomain reports whether domainName belongs to a small-talk
// skill. With no skill claiming it, only the unknown domain counts.
func (v *Vocabulary) IsConversationalDomain(domainName string) bool {
	for _, s := range v.Skills {
		if s.Domain == domainName {
			return s.Conversational
		}
	}
	return domainName == domain.UnknownDomain || domainName == ""
}

// EntityRules returns the entity types to extract for a classification.
// Single-domain requests get the types of skills in those domains plus the
// small-talk skills; composite requests get every declared type so
// coordination hints are captured. A connection_type rule is added when
// connection patterns exist.
func (v *Vocabulary) EntityRules(requestType domain.RequestType, domains []string) []domain.EntityType {
	var rules []domain.EntityType
	seen := make(map[string]bool)
	add := func(types []domain.EntityType) {
		for _, et := range types {
			if et.Name == "" || seen[et.Name] {
				continue
			}
			seen[et.Name] = true
			rules = append(rules, et)
		}
	}

	for _, s := range v.Skills {
		if requestType == domain.RequestMultiDomain || s.Conversational || slices.Contains(domains, s.Domain) {
			add(v.entityBySkill[s.ID])
		}
	}
	if len(rules) == 0 {
		for _, s := range v.Skills {
			add(v.entityBySkill[s.ID])
		}
	}
	if len(v.ConnectionPatterns) > 0 && !seen["connection_type"] {
		examples := v.ConnectionPatterns
		if len(examples) > maxConnectionExamples {
			examples = examples[:maxConnectionExamples]
		}
		rules = append(rules, domain.EntityType{
			Name:        "connection_type",
			Description: "word linking two requests",
			Examples:    slices.Clone(examples),
		})
	}
	if len(rules) == 0 {
		return slices.Clone(fallbackEntityRules)
	}
	return rules
}

const (
	maxExamplesPerType     = 3
	maxExamplesPerCategory = 5
)

var contextBuckets = []struct {
	label    string
	keywords []string
}{
	{"numeric values", []string{"level", "number", "count", "량", "수"}},
	{"states", []string{"상태", "status", "condition", "mode"}},
	{"conditions", []string{"시간", "time", "날짜", "date", "조건"}},
}

const objectLabel = "objects"

func buildContextCategories(v *Vocabulary) []ContextCategory {
	examples := make(map[string][]string)
	add := func(label string, values []string) {
		if len(values) > maxExamplesPerType {
			values = values[:maxExamplesPerType]
		}
		for _, x := range values {
			if len(examples[label]) < maxExamplesPerCategory && !slices.Contains(examples[label], x) {
				examples[label] = append(examples[label], x)
			}
		}
	}

	for _, s := range v.Skills {
		for _, et := range v.entityBySkill[s.ID] {
			add(bucketFor(et.Name), et.Examples)
		}
	}

	var out []ContextCategory
	for _, b := range contextBuckets {
		if len(examples[b.label]) > 0 {
			out = append(out, ContextCategory{Label: b.label, Examples: examples[b.label]})
		}
	}
	if len(examples[objectLabel]) > 0 {
		out = append(out, ContextCategory{Label: objectLabel, Examples: examples[objectLabel]})
	}
	return out
}

func bucketFor(entityName string) string {
	name := strings.ToLower(entityName)
	for _, b := range contextBuckets {
		for _, kw := range b.keywords {
			if strings.Contains(name, kw) {
				return b.label
			}
		}
	}
	return objectLabel
}

// Provider pairs the template library with the current vocabulary. Register
// Rebuild as a registry observer to keep the vocabulary current.
type Provider struct {
	lib    *Library
	dir    domain.AgentDirectory
	vocab  atomic.Pointer[Vocabulary]
	logger *slog.Logger

	// rebuildMu orders snapshot and store so a late rebuild never
	// replaces a newer vocabulary with an older registry view.
	rebuildMu sync.Mutex
}

// NewProvider builds the initial vocabulary from dir.
func NewProvider(lib *Library, dir domain.AgentDirectory, logger *slog.Logger) *Provider {
	p := &Provider{lib: lib, dir: dir, logger: logger}
	p.vocab.Store(BuildVocabulary(dir.ListAll()))
	return p
}

// Rebuild recomputes the vocabulary from the registry. Observers of
// concurrent registrations may call it in parallel.
func (p *Provider) Rebuild(_ context.Context, agent domain.AgentDescriptor) error {
	p.rebuildMu.Lock()
	v := BuildVocabulary(p.dir.ListAll())
	p.vocab.Store(v)
	p.rebuildMu.Unlock()
	p.logger.Debug("prompt vocabulary rebuilt",
		"trigger", agent.ID,
		"domains", len(v.Domains),
		"skills", len(v.Skills),
	)
	return nil
}

// Vocabulary returns the current snapshot.
func (p *Provider) Vocabulary() *Vocabulary {
	return p.vocab.Load()
}

// Render executes a template from the library.
func (p *Provider) Render(name string, data any) (Rendered, error) {
	return p.lib.Render(name, data)
}
