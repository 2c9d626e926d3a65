package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/kayz/formforge/internal/extract"
	"github.com/kayz/formforge/internal/form"
	"github.com/kayz/formforge/internal/prompt"
)

// RuleBased is a deterministic, offline implementation of the Backend
// contract. It applies a small set of keyword rules to the instruction and
// emits the same wire JSON an LLM would, so the full extract/validate/revise
// pipeline can run without a network. It understands far less than a model:
// add/remove/dispute, required/optional toggles and relabeling only.
type RuleBased struct{}

// NewRuleBased creates the rule-based backend.
func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

// Name returns the provider name.
func (p *RuleBased) Name() string {
	return "rules"
}

// Complete applies the rules and streams the response JSON in fragments.
func (p *RuleBased) Complete(_ context.Context, messages []prompt.Message) (extract.Stream, error) {
	var userTurn string
	for _, msg := range messages {
		if msg.Role == prompt.RoleUser {
			userTurn = msg.Content
		}
	}

	instruction, current := prompt.ParseUserTurn(userTurn)
	message, next := applyRules(instruction, current)

	payload, err := json.Marshal(map[string]any{
		"message":   message,
		"form_data": next,
	})
	if err != nil {
		return nil, err
	}
	return newSliceStream(string(payload)), nil
}

var (
	optionsPattern = regexp.MustCompile(`(?i)with (?:the )?options?\s+(.+)$`)
	clauseSplit    = regexp.MustCompile(`\s+and\s+(?:an?\s+)`)
	optionSplit    = regexp.MustCompile(`\s*,\s*(?:and\s+)?|\s+and\s+`)
	labelPattern   = regexp.MustCompile(`(?i)^\s*(?:change|set|rename)\s+(?:the\s+)?label\s+(?:of|for)\s+(?:the\s+)?(.+?)(?:\s+field)?\s+to\s+(.+?)\s*[.!]?\s*$`)
)

func applyRules(instruction string, current form.Form) (string, form.Form) {
	next := current.Clone()
	lower := strings.ToLower(instruction)

	// Relabeling runs on the original-cased instruction so the new label
	// keeps the user's casing.
	if m := labelPattern.FindStringSubmatch(instruction); m != nil {
		name := setLabel(&next, strings.ToLower(strings.TrimSpace(m[1])), strings.TrimSpace(m[2]))
		if name == "" {
			return "Unable to process instruction. Please clarify.", next
		}
		return fmt.Sprintf("Form updated: Changed label of %s", name), next
	}

	switch {
	case isRemoval(lower):
		removed := removeMatching(&next, lower)
		if len(removed) == 0 {
			return "Unable to process instruction. Please clarify.", next
		}
		if isDispute(lower) {
			return fmt.Sprintf("Corrected by removing %s", strings.Join(removed, ", ")), next
		}
		return fmt.Sprintf("Form updated: Removed %s", strings.Join(removed, ", ")), next

	case strings.Contains(lower, "optional") && strings.Contains(lower, "make"):
		changed := setRequired(&next, lower, false)
		if len(changed) == 0 {
			return "Unable to process instruction. Please clarify.", next
		}
		return fmt.Sprintf("Form updated: Made %s optional", strings.Join(changed, ", ")), next

	case strings.Contains(lower, "required") && strings.Contains(lower, "make"):
		changed := setRequired(&next, lower, true)
		if len(changed) == 0 {
			return "Unable to process instruction. Please clarify.", next
		}
		return fmt.Sprintf("Form updated: Made %s required", strings.Join(changed, ", ")), next

	case strings.Contains(lower, "add "):
		added := addFields(&next, lower)
		if len(added) == 0 {
			return "Unable to process instruction. Please clarify.", next
		}
		return fmt.Sprintf("Form updated: Added %s", strings.Join(added, ", ")), next
	}

	return "Unable to process instruction. Please clarify.", next
}

func isRemoval(lower string) bool {
	return strings.Contains(lower, "remove") ||
		strings.Contains(lower, "delete") ||
		strings.Contains(lower, "drop the") ||
		isDispute(lower)
}

func isDispute(lower string) bool {
	return strings.Contains(lower, "never asked") ||
		strings.Contains(lower, "didn't ask") ||
		strings.Contains(lower, "did not ask")
}

// removeMatching drops every field whose name or label is mentioned in the
// instruction and returns the removed names.
func removeMatching(f *form.Form, lower string) []string {
	var removed []string
	var kept []form.Field
	for _, fld := range f.Fields {
		if mentions(lower, fld) {
			removed = append(removed, fld.Name)
			continue
		}
		kept = append(kept, fld)
	}
	if kept == nil {
		kept = []form.Field{}
	}
	f.Fields = kept
	return removed
}

// setLabel relabels the field matching target and returns its name. The name
// is the field's identity and never changes with the label.
func setLabel(f *form.Form, target, label string) string {
	for i := range f.Fields {
		if mentions(target, f.Fields[i]) {
			f.Fields[i].Label = label
			return f.Fields[i].Name
		}
	}
	return ""
}

func setRequired(f *form.Form, lower string, required bool) []string {
	var changed []string
	for i := range f.Fields {
		if mentions(lower, f.Fields[i]) {
			f.Fields[i].Required = required
			changed = append(changed, f.Fields[i].Name)
		}
	}
	return changed
}

func mentions(lower string, fld form.Field) bool {
	if strings.Contains(lower, strings.ReplaceAll(fld.Name, "_", " ")) ||
		strings.Contains(lower, fld.Name) {
		return true
	}
	label := strings.ToLower(fld.Label)
	return label != "" && strings.Contains(lower, label)
}

// addFields parses one or more add clauses ("add a required text field for
// name and an optional email field") and appends the resulting fields.
func addFields(f *form.Form, lower string) []string {
	idx := strings.Index(lower, "add ")
	// Split on "and a/an" so option lists like "male, female and other"
	// stay inside one clause.
	clauses := clauseSplit.Split(lower[idx+len("add "):], -1)

	existing := make(map[string]bool)
	for _, n := range f.Names() {
		existing[n] = true
	}

	var added []string
	for _, clause := range clauses {
		fld, ok := parseAddClause(clause)
		if !ok || existing[fld.Name] {
			continue
		}
		f.Fields = append(f.Fields, fld)
		existing[fld.Name] = true
		added = append(added, fld.Name)
	}
	return added
}

var typeKeywords = []struct {
	keyword string
	typ     form.FieldType
}{
	{"email", form.TypeEmail},
	{"multiple choice", form.TypeRadio},
	{"radio", form.TypeRadio},
	{"checkbox", form.TypeCheckbox},
	{"dropdown", form.TypeDropdown},
	{"select", form.TypeDropdown},
	{"date", form.TypeDate},
	{"number", form.TypeNumber},
	{"image", form.TypeImage},
	{"photo", form.TypeImage},
	{"picture", form.TypeImage},
	{"file", form.TypeFile},
	{"upload", form.TypeFile},
}

func parseAddClause(clause string) (form.Field, bool) {
	clause = strings.TrimSpace(clause)
	if clause == "" {
		return form.Field{}, false
	}

	var options []form.Option
	if m := optionsPattern.FindStringSubmatch(clause); m != nil {
		for _, part := range optionSplit.Split(m[1], -1) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			options = append(options, form.Option{Value: snakeCase(part), Label: titleCase(part)})
		}
		clause = strings.TrimSpace(optionsPattern.ReplaceAllString(clause, ""))
	}

	typ := form.TypeText
	for _, tk := range typeKeywords {
		if strings.Contains(clause, tk.keyword) {
			typ = tk.typ
			break
		}
	}

	label := clauseLabel(clause, typ)
	if label == "" {
		return form.Field{}, false
	}

	fld := form.Field{
		Name:     snakeCase(label),
		Label:    titleCase(label),
		Type:     typ,
		Required: !strings.Contains(clause, "optional"),
	}
	if form.NeedsOptions(typ) {
		if len(options) == 0 {
			options = []form.Option{
				{Value: "yes", Label: "Yes"},
				{Value: "no", Label: "No"},
			}
		}
		fld.Options = options
	}
	return fld, true
}

// clauseLabel pulls the label out of an add clause: the text after "for",
// falling back to the type keyword itself ("an optional email field").
func clauseLabel(clause string, typ form.FieldType) string {
	if idx := strings.Index(clause, " for "); idx >= 0 {
		label := strings.TrimSpace(clause[idx+len(" for "):])
		label = strings.TrimSuffix(label, " field")
		label = strings.Trim(label, " .!?")
		if strings.HasPrefix(label, "the ") {
			label = label[len("the "):]
		}
		return label
	}
	if typ != form.TypeText {
		return string(typ)
	}
	return ""
}

var nonName = regexp.MustCompile(`[^a-z0-9_]+`)

func snakeCase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = nonName.ReplaceAllString(s, "")
	return strings.Trim(s, "_")
}

func titleCase(s string) string {
	words := strings.Fields(strings.TrimSpace(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// sliceStream replays a payload as a short sequence of fragments so stream
// consumers see fragment boundaries even from the offline backend.
type sliceStream struct {
	parts []string
	pos   int
}

func newSliceStream(payload string) *sliceStream {
	mid := len(payload) / 2
	if mid == 0 {
		return &sliceStream{parts: []string{payload}}
	}
	return &sliceStream{parts: []string{payload[:mid], payload[mid:]}}
}

func (s *sliceStream) Recv() (string, error) {
	if s.pos >= len(s.parts) {
		return "", io.EOF
	}
	part := s.parts[s.pos]
	s.pos++
	return part, nil
}
