package workflow

import (
	"fmt"
	"regexp"
	"strings"
)

// mentionPattern matches [@kind:name](#mention). Names cannot contain ']'.
var mentionPattern = regexp.MustCompile(`\[@(agent|tool|prompt):([^\]]+)\]\(#mention\)`)

// Mention is a reference to another entity embedded in instructions or
// prompt text. Start and End are byte offsets into the source text.
type Mention struct {
	Kind  Kind
	Name  string
	Start int
	End   int
}

// FormatMention renders the mention syntax for an entity.
func FormatMention(kind Kind, name string) string {
	return fmt.Sprintf("[@%s:%s](#mention)", kind, name)
}

// ParseMentions returns every mention in text in order of appearance.
func ParseMentions(text string) []Mention {
	matches := mentionPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]Mention, 0, len(matches))
	for _, m := range matches {
		out = append(out, Mention{
			Kind:  Kind(text[m[2]:m[3]]),
			Name:  text[m[4]:m[5]],
			Start: m[0],
			End:   m[1],
		})
	}
	return out
}

// RewriteMentions replaces every mention of kind:oldName with kind:newName.
// Mentions of other kinds or of names that merely share a prefix are left
// untouched.
func RewriteMentions(text string, kind Kind, oldName, newName string) string {
	if oldName == newName {
		return text
	}
	return strings.ReplaceAll(text, FormatMention(kind, oldName), FormatMention(kind, newName))
}

// DanglingMention is a mention whose target does not exist.
type DanglingMention struct {
	// Source names the entity whose text holds the mention.
	SourceKind Kind
	SourceName string
	Mention    Mention
}

// String implements fmt.Stringer.
func (m DanglingMention) String() string {
	return fmt.Sprintf("%s %q mentions unknown %s %q", m.SourceKind, m.SourceName, m.Mention.Kind, m.Mention.Name)
}

// InvalidMentions reports mentions in agent instructions and prompt text
// that do not resolve. The text itself is left as is.
func (d *Document) InvalidMentions() []DanglingMention {
	var out []DanglingMention
	check := func(kind Kind, name, text string) {
		for _, m := range ParseMentions(text) {
			if !d.Has(m.Kind, m.Name) {
				out = append(out, DanglingMention{SourceKind: kind, SourceName: name, Mention: m})
			}
		}
	}
	for _, a := range d.Agents {
		check(KindAgent, a.Name, a.Instructions)
	}
	for _, p := range d.Prompts {
		check(KindPrompt, p.Name, p.Prompt)
	}
	return out
}

// RenameMentions rewrites mentions of kind:oldName in every agent's
// instructions and every prompt's text. The document is modified in place.
func (d *Document) RenameMentions(kind Kind, oldName, newName string) {
	for i := range d.Agents {
		d.Agents[i].Instructions = RewriteMentions(d.Agents[i].Instructions, kind, oldName, newName)
	}
	for i := range d.Prompts {
		d.Prompts[i].Prompt = RewriteMentions(d.Prompts[i].Prompt, kind, oldName, newName)
	}
}
