package catalog

import (
	"fmt"
	"strings"
	"text/template"
)

// NameFields are the values available to token and NFT name templates.
//
// In random-drop mode Number is the 1-based acceptance sequence and Edition
// and Editions are both 1. In card-edition mode Number is zero, CardID is the
// card id, Edition runs 1..Editions and Editions is the card count.
type NameFields struct {
	Series   string
	CardID   string
	Number   int64
	Edition  int
	Editions int
}

// NameTemplate renders token or NFT names, e.g.
// "TCR{{.Series}}_{{pad 5 .Number}}" or "{{.CardID}} #{{.Edition}}/{{.Editions}}".
type NameTemplate struct {
	tmpl *template.Template
}

var nameFuncs = template.FuncMap{
	"pad": pad,
}

// ParseNameTemplate compiles src and renders it once against sample fields so
// references to unknown fields fail at load time rather than mid-run.
func ParseNameTemplate(name, src string) (*NameTemplate, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%s template is required", name)
	}
	tmpl, err := template.New(name).Funcs(nameFuncs).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse %s template: %w", name, err)
	}
	nt := &NameTemplate{tmpl: tmpl}
	if _, err := nt.Render(NameFields{Series: "1", CardID: "1", Number: 1, Edition: 1, Editions: 1}); err != nil {
		return nil, err
	}
	return nt, nil
}

// Render executes the template.
func (t *NameTemplate) Render(fields NameFields) (string, error) {
	var b strings.Builder
	if err := t.tmpl.Execute(&b, fields); err != nil {
		return "", fmt.Errorf("render %s template: %w", t.tmpl.Name(), err)
	}
	out := b.String()
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("render %s template: empty result", t.tmpl.Name())
	}
	return out, nil
}

// pad left-pads v with zeros to width characters.
func pad(width int, v any) string {
	s := fmt.Sprint(v)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
