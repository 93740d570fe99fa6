package template

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/forgeloop/internal/logger"
)

// Variables holds the data to be injected into template placeholders.
type Variables struct {
	Name        string // package name of the project
	Title       string // human-readable project title
	Feature     string // feature tag being implemented
	Component   string // component identifier derived from the feature
	DatabaseURL string
	DatabaseSSL string // "true" or "false"
}

// Render replaces {{variable}} placeholders in template with actual values.
// Supports the following variables:
// - {{name}} - Project package name
// - {{title}} - Project title
// - {{feature}} - Feature tag
// - {{component}} - Component identifier
// - {{database_url}} - Database connection string
// - {{database_ssl}} - Database SSL flag
//
// Unknown placeholders are left untouched.
func Render(template string, vars Variables) string {
	return strings.NewReplacer(
		"{{name}}", vars.Name,
		"{{title}}", vars.Title,
		"{{feature}}", vars.Feature,
		"{{component}}", vars.Component,
		"{{database_url}}", vars.DatabaseURL,
		"{{database_ssl}}", vars.DatabaseSSL,
	).Replace(template)
}

// LoadFromFile loads a template from a file.
// If the file doesn't exist or can't be read, returns an error.
func LoadFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template file %s: %w", path, err)
	}
	return string(data), nil
}

// GetTemplate returns the content for a scaffold file.
// If overrideDir contains a file with the same name it wins; otherwise the
// embedded default is returned.
func GetTemplate(overrideDir, name string) (string, error) {
	def, ok := Scaffold[name]
	if overrideDir != "" {
		content, err := LoadFromFile(filepath.Join(overrideDir, name))
		if err == nil {
			logger.Debug("Using template override for %s from %s", name, overrideDir)
			return content, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	return def, nil
}

// ComponentName turns a feature tag such as "improve_code_quality" into a
// component identifier ("ImproveCodeQuality").
func ComponentName(feature string) string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(feature, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	}) {
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return b.String()
}
