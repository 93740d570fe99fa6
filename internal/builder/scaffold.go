// Package builder materializes and grows a React, Vite and TypeScript project
// on disk. It is the build actor of the convergence loop.
package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gosimple/slug"
	"github.com/mark3labs/forgeloop/internal/hooks"
	"github.com/mark3labs/forgeloop/internal/logger"
	"github.com/mark3labs/forgeloop/internal/template"
)

// Default step timeouts.
const (
	DefaultInstallTimeout = 300 * time.Second
	DefaultBuildTimeout   = 300 * time.Second
)

// Supported database types.
const (
	DatabasePostgres = "postgresql"
	DatabaseMongo    = "mongodb"
)

// Directories created by the initial scaffold.
var scaffoldDirs = []string{
	"src/components",
	"src/sections",
	"src/utils",
	"src/hooks",
	"src/services",
	"src/types",
	"public",
	"config",
}

// Files rendered from templates by the initial scaffold, in write order.
var scaffoldFiles = []string{
	"vite.config.ts",
	"tailwind.config.js",
	"postcss.config.js",
	"index.html",
	"src/main.tsx",
	"src/index.css",
	"src/App.tsx",
	"README.md",
	".gitignore",
	".env.example",
}

// Options configures a Scaffold.
type Options struct {
	Name           string // project name; slugified for package.json
	DatabaseType   string // "", DatabasePostgres or DatabaseMongo
	DatabaseURL    string
	DatabaseSSL    bool
	Stripe         bool // add the Stripe client dependency
	InstallTimeout time.Duration
	BuildTimeout   time.Duration
	TemplateDir    string        // optional directory of template overrides
	Hooks          *hooks.Config // optional command overrides
}

// Scaffold is the builder for one project directory.
type Scaffold struct {
	dir     string
	opts    Options
	tracker *FileTracker
}

// New creates a Scaffold rooted at dir.
func New(dir string, opts Options) *Scaffold {
	if opts.Name == "" {
		opts.Name = filepath.Base(dir)
	}
	if opts.InstallTimeout <= 0 {
		opts.InstallTimeout = DefaultInstallTimeout
	}
	if opts.BuildTimeout <= 0 {
		opts.BuildTimeout = DefaultBuildTimeout
	}
	return &Scaffold{
		dir:     dir,
		opts:    opts,
		tracker: NewFileTracker(dir),
	}
}

// Dir returns the project directory.
func (s *Scaffold) Dir() string {
	return s.dir
}

// ModifiedPaths returns the files written by the most recent step.
func (s *Scaffold) ModifiedPaths() []string {
	return s.tracker.ModifiedPaths()
}

// Changes returns per-file line counts for the most recent step.
func (s *Scaffold) Changes() []FileChange {
	return s.tracker.Changes()
}

func (s *Scaffold) vars() template.Variables {
	return template.Variables{
		Name:        s.packageName(),
		Title:       s.opts.Name,
		DatabaseURL: s.opts.DatabaseURL,
		DatabaseSSL: strconv.FormatBool(s.opts.DatabaseSSL),
	}
}

func (s *Scaffold) packageName() string {
	if name := slug.Make(s.opts.Name); name != "" {
		return name
	}
	return "forgeloop-app"
}

// CreateInitialArtifact lays down the project skeleton. Any error is fatal to
// the build.
func (s *Scaffold) CreateInitialArtifact(ctx context.Context) error {
	s.tracker.Clear()
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}
	for _, dir := range scaffoldDirs {
		if err := os.MkdirAll(filepath.Join(s.dir, filepath.FromSlash(dir)), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if err := s.writeJSON("package.json", s.manifest()); err != nil {
		return err
	}
	if err := s.writeJSON("tsconfig.json", tsconfig); err != nil {
		return err
	}
	if err := s.writeJSON("tsconfig.node.json", tsconfigNode); err != nil {
		return err
	}

	vars := s.vars()
	for _, name := range scaffoldFiles {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writeTemplate(name, name, vars); err != nil {
			return err
		}
	}

	logger.Info("Created project structure at %s (%d files)", s.dir, len(s.tracker.ModifiedPaths()))
	return nil
}

type packageManifest struct {
	Name            string            `json:"name"`
	Private         bool              `json:"private"`
	Version         string            `json:"version"`
	Type            string            `json:"type"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func (s *Scaffold) manifest() packageManifest {
	m := packageManifest{
		Name:    s.packageName(),
		Private: true,
		Version: "1.0.0",
		Type:    "module",
		Scripts: map[string]string{
			"dev":     "vite",
			"build":   "tsc && vite build",
			"preview": "vite preview",
			"lint":    "eslint . --ext ts,tsx",
		},
		Dependencies: map[string]string{
			"react":            "^18.2.0",
			"react-dom":        "^18.2.0",
			"react-router-dom": "^6.20.0",
			"framer-motion":    "^10.16.4",
			"lucide-react":     "^0.294.0",
			"axios":            "^1.6.0",
			"zustand":          "^4.4.7",
		},
		DevDependencies: map[string]string{
			"@types/react":                     "^18.2.43",
			"@types/react-dom":                 "^18.2.17",
			"@typescript-eslint/eslint-plugin": "^6.14.0",
			"@typescript-eslint/parser":        "^6.14.0",
			"@vitejs/plugin-react":             "^4.2.1",
			"autoprefixer":                     "^10.4.16",
			"eslint":                           "^8.55.0",
			"eslint-plugin-react-hooks":        "^4.6.0",
			"eslint-plugin-react-refresh":      "^0.4.5",
			"postcss":                          "^8.4.32",
			"tailwindcss":                      "^3.3.6",
			"typescript":                       "^5.2.2",
			"vite":                             "^5.0.8",
		},
	}

	switch s.opts.DatabaseType {
	case DatabasePostgres:
		m.Dependencies["pg"] = "^8.11.3"
		m.Dependencies["@types/pg"] = "^8.10.9"
	case DatabaseMongo:
		m.Dependencies["mongodb"] = "^6.3.0"
	}
	if s.opts.Stripe {
		m.Dependencies["@stripe/stripe-js"] = "^2.4.0"
	}
	return m
}

var tsconfig = map[string]any{
	"compilerOptions": map[string]any{
		"target":                     "ES2020",
		"useDefineForClassFields":    true,
		"lib":                        []string{"ES2020", "DOM", "DOM.Iterable"},
		"module":                     "ESNext",
		"skipLibCheck":               true,
		"moduleResolution":           "bundler",
		"allowImportingTsExtensions": true,
		"resolveJsonModule":          true,
		"isolatedModules":            true,
		"noEmit":                     true,
		"jsx":                        "react-jsx",
		"strict":                     true,
		"noUnusedLocals":             true,
		"noUnusedParameters":         true,
		"noFallthroughCasesInSwitch": true,
	},
	"include":    []string{"src"},
	"references": []map[string]string{{"path": "./tsconfig.node.json"}},
}

var tsconfigNode = map[string]any{
	"compilerOptions": map[string]any{
		"composite":                    true,
		"skipLibCheck":                 true,
		"module":                       "ESNext",
		"moduleResolution":             "bundler",
		"allowSyntheticDefaultImports": true,
	},
	"include": []string{"vite.config.ts"},
}

func (s *Scaffold) writeJSON(rel string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", rel, err)
	}
	return s.writeFile(rel, string(data)+"\n")
}

// writeTemplate renders the named template into the project at rel.
func (s *Scaffold) writeTemplate(rel, name string, vars template.Variables) error {
	content, err := template.GetTemplate(s.opts.TemplateDir, name)
	if err != nil {
		return err
	}
	return s.writeFile(rel, template.Render(content, vars))
}

// writeFile writes content to rel and records the change. Unchanged files are
// left alone.
func (s *Scaffold) writeFile(rel, content string) error {
	path := filepath.Join(s.dir, filepath.FromSlash(rel))

	old, err := os.ReadFile(path)
	isNew := errors.Is(err, os.ErrNotExist)
	if err != nil && !isNew {
		return fmt.Errorf("failed to read %s: %w", rel, err)
	}
	if !isNew && string(old) == content {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	s.tracker.Record(path, isNew, string(old), content)
	return nil
}
