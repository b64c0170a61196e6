// Package prompt builds the user message sent to the inference provider for each stage.
package prompt

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TemplateCount is the number of instruction blocks every template set must provide.
const TemplateCount = 3

const contentHeader = "Contenuto del PDF:"

// Assemble joins the templates with blank lines and appends the extracted text
// after one more blank line. It performs no I/O.
func Assemble(templates []string, text string) string {
	var b strings.Builder
	for i, tpl := range templates {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(tpl)
	}
	b.WriteString("\n\n")
	b.WriteString(contentHeader)
	b.WriteString("\n")
	b.WriteString(text)
	b.WriteString("\n")
	return b.String()
}

// templateFile is the YAML layout accepted by LoadTemplates.
type templateFile struct {
	Parts []string `yaml:"parts"`
}

// LoadTemplates reads a YAML override file of the form
//
//	parts:
//	  - |
//	    PARTE 1 ...
//
// An empty path returns the built-in templates.
func LoadTemplates(path string) ([]string, error) {
	if path == "" {
		return DefaultTemplates(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt templates: %w", err)
	}

	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing prompt templates: %w", err)
	}

	if len(tf.Parts) != TemplateCount {
		return nil, fmt.Errorf("prompt templates: expected %d parts, got %d", TemplateCount, len(tf.Parts))
	}
	for i, p := range tf.Parts {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("prompt templates: part %d is empty", i+1)
		}
	}

	return tf.Parts, nil
}
