package generate

import (
	"context"
	"fmt"
	"strings"
)

// FallbackGenerator produces forms from static templates chosen by simple
// prompt heuristics. It serves two roles: the default generator when no LLM
// client is configured, and the fallback an LLM-backed Generator can
// delegate to when the upstream call times out.
type FallbackGenerator struct{}

// NewFallbackGenerator creates the template-based generator.
func NewFallbackGenerator() *FallbackGenerator {
	return &FallbackGenerator{}
}

// Generate picks a template by keyword matching on the prompt.
func (g *FallbackGenerator) Generate(ctx context.Context, prompt, lang string) (string, error) {
	kind := classify(prompt)
	title := strings.TrimSpace(prompt)
	if len(title) > 60 {
		title = title[:60]
	}
	return renderTemplate(kind, title, lang), nil
}

type formKind int

const (
	kindGeneric formKind = iota
	kindContact
	kindRegistration
	kindSurvey
)

func classify(prompt string) formKind {
	p := strings.ToLower(prompt)
	switch {
	case containsAny(p, "contact", "reach", "message us"):
		return kindContact
	case containsAny(p, "register", "registration", "sign up", "signup", "enroll"):
		return kindRegistration
	case containsAny(p, "survey", "feedback", "rating", "questionnaire"):
		return kindSurvey
	default:
		return kindGeneric
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func renderTemplate(kind formKind, title, lang string) string {
	var fields string
	switch kind {
	case kindContact:
		fields = textField("name", "Name") + textField("email", "Email") + textArea("message", "Message")
	case kindRegistration:
		fields = textField("full_name", "Full name") + textField("email", "Email") + textField("phone", "Phone")
	case kindSurvey:
		fields = textField("name", "Name") + selectField("rating", "Rating", "1", "2", "3", "4", "5") + textArea("comments", "Comments")
	default:
		fields = textField("name", "Name") + textField("email", "Email") + textArea("details", "Details")
	}
	return fmt.Sprintf(`<form lang=%q><h2>%s</h2>%s<button type="submit">Submit</button></form>`,
		lang, title, fields)
}

func textField(name, label string) string {
	return fmt.Sprintf(`<label>%s<input type="text" name=%q required></label>`, label, name)
}

func textArea(name, label string) string {
	return fmt.Sprintf(`<label>%s<textarea name=%q rows="4"></textarea></label>`, label, name)
}

func selectField(name, label string, options ...string) string {
	var b strings.Builder
	for _, opt := range options {
		fmt.Fprintf(&b, `<option value=%q>%s</option>`, opt, opt)
	}
	return fmt.Sprintf(`<label>%s<select name=%q>%s</select></label>`, label, name, b.String())
}
