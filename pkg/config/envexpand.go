package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv expands environment variables in YAML content using Go templates.
// Uses {{.VAR_NAME}} syntax to avoid collision with $ in regex patterns.
//
// Literal $ characters (passwords, JWT secrets) are left alone.
//
// Examples:
//   - {{.GROQ_API_KEY}} → value of GROQ_API_KEY environment variable
//   - {{.SLACK_BOT_TOKEN}} → Slack token kept out of the YAML file
//   - {{.WORKERS | default "4"}} → WORKERS, or "4" when unset or empty
//
// Missing variables expand to empty string (unless template is malformed).
// Validation should catch required fields that are empty.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").
		Option("missingkey=zero").
		Funcs(template.FuncMap{"default": defaultValue}).
		Parse(string(data))
	if err != nil {
		// If template parsing fails, return original data
		// This allows YAML without any template syntax to pass through
		return data
	}

	envMap := make(map[string]string)
	for _, env := range os.Environ() {
		if key, value, ok := strings.Cut(env, "="); ok && key != "" {
			envMap[key] = value
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, envMap); err != nil {
		// If execution fails, return original data
		return data
	}

	return buf.Bytes()
}

func defaultValue(def, v string) string {
	if v == "" {
		return def
	}
	return v
}
