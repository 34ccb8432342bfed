// Package report renders the one-page markdown report for an evaluated idea.
package report

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/c360studio/crucible/idea"
	"github.com/c360studio/crucible/verdict"
)

//go:embed templates/*.md
var builtin embed.FS

// Template file names, selected by language.
const (
	TemplateEN      = "report.en.md"
	TemplateZH      = "report.zh-CN.md"
	TemplateDefault = "report.md"
)

// TemplateFor picks the template for a language tag: en* uses English, zh*
// or an empty tag uses Simplified Chinese, anything else the plain layout.
func TemplateFor(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	switch {
	case strings.HasPrefix(lang, "en"):
		return TemplateEN
	case lang == "" || lang == "auto" || strings.HasPrefix(lang, "zh"):
		return TemplateZH
	}
	return TemplateDefault
}

// placeholder is printed for empty lists.
func placeholder(name string) string {
	if name == TemplateZH {
		return "暂无"
	}
	return "None"
}

// data is what templates see. List fields are pre-rendered bullet blocks.
type data struct {
	Intent, User, Scenario, Triggers, Alts string
	Assumptions, Risks                     string
	Decision                               string
	ConfLevel                              string
	Reasons, Redlines, NextSteps           string
}

// Renderer renders reports, preferring templates from Dir over the built-in set.
type Renderer struct {
	// Dir, when set, is checked first for a template with the selected name.
	Dir string
}

// Render produces the report for an idea and its verdict in the given language.
func (r Renderer) Render(i idea.Idea, v verdict.Verdict, lang string) ([]byte, error) {
	name := TemplateFor(lang)
	src, err := r.load(name)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}

	empty := placeholder(name)
	d := data{
		Intent:      i.Intent,
		User:        i.User,
		Scenario:    i.Scenario,
		Triggers:    i.Triggers,
		Alts:        i.Alts,
		Assumptions: bullets(i.Assumptions, empty),
		Risks:       bullets(i.Risks, empty),
		Decision:    string(v.Decision),
		ConfLevel:   fmt.Sprintf("%.2f", v.ConfLevel),
		Reasons:     bullets(v.Reasons, empty),
		Redlines:    bullets(v.Redlines, empty),
		NextSteps:   bullets(v.NextSteps, empty),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, d); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders and writes the report, creating parent directories.
func (r Renderer) WriteFile(path string, i idea.Idea, v verdict.Verdict, lang string) error {
	out, err := r.Render(i, v, lang)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

func (r Renderer) load(name string) ([]byte, error) {
	if r.Dir != "" {
		// #nosec G304 -- template dir is operator configuration.
		b, err := os.ReadFile(filepath.Join(r.Dir, name))
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read template %s: %w", name, err)
		}
	}
	b, err := builtin.ReadFile("templates/" + name)
	if err != nil {
		return nil, fmt.Errorf("built-in template %s: %w", name, err)
	}
	return b, nil
}

// bullets renders items as "\n- a\n- b" or the placeholder when empty.
func bullets(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return "\n- " + strings.Join(items, "\n- ")
}
