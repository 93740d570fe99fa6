package builder

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	ierr "github.com/mark3labs/forgeloop/internal/errors"
	"github.com/mark3labs/forgeloop/internal/hooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readManifest(t *testing.T, dir string) packageManifest {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	require.NoError(t, err)
	var m packageManifest
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestCreateInitialArtifact(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shop")
	s := New(dir, Options{Name: "My Shop"})

	require.NoError(t, s.CreateInitialArtifact(context.Background()))

	for _, d := range scaffoldDirs {
		assert.DirExists(t, filepath.Join(dir, d))
	}
	for _, f := range append([]string{"package.json", "tsconfig.json", "tsconfig.node.json"}, scaffoldFiles...) {
		assert.FileExists(t, filepath.Join(dir, f))
	}

	m := readManifest(t, dir)
	assert.Equal(t, "my-shop", m.Name)
	assert.Equal(t, "vite", m.Scripts["dev"])
	assert.Equal(t, "tsc && vite build", m.Scripts["build"])
	assert.NotContains(t, m.Dependencies, "pg")
	assert.NotContains(t, m.Dependencies, "@stripe/stripe-js")

	html, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<title>My Shop</title>")

	for _, c := range s.Changes() {
		assert.True(t, c.IsNew, c.Path)
		assert.Positive(t, c.Additions, c.Path)
		assert.Zero(t, c.Deletions, c.Path)
	}
	assert.Contains(t, s.ModifiedPaths(), "src/App.tsx")

	t.Run("rerun leaves files untouched", func(t *testing.T) {
		require.NoError(t, s.CreateInitialArtifact(context.Background()))
		assert.Empty(t, s.ModifiedPaths())
	})
}

func TestManifestDependencies(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		present []string
		absent  []string
	}{
		{"postgres", Options{DatabaseType: DatabasePostgres}, []string{"pg", "@types/pg"}, []string{"mongodb"}},
		{"mongo", Options{DatabaseType: DatabaseMongo}, []string{"mongodb"}, []string{"pg"}},
		{"stripe", Options{Stripe: true}, []string{"@stripe/stripe-js"}, []string{"pg", "mongodb"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := New(t.TempDir(), tt.opts).manifest().Dependencies
			for _, d := range tt.present {
				assert.Contains(t, deps, d)
			}
			for _, d := range tt.absent {
				assert.NotContains(t, deps, d)
			}
		})
	}
}

func TestImplementFeatures(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, Options{Name: "app", DatabaseType: DatabaseMongo, DatabaseURL: "mongodb://db"})
	require.NoError(t, s.CreateInitialArtifact(context.Background()))

	features := []string{"navigation", "hero", "api", "database", "authentication", "improve_code_quality"}
	implemented, err := s.ImplementFeatures(context.Background(), features, "Structure: x\nContinue working towards goal: y")
	require.NoError(t, err)
	assert.Equal(t, features, implemented)

	assert.Equal(t, []string{
		"src/components/ImproveCodeQuality.tsx",
		"src/components/Navigation.tsx",
		"src/hooks/useAuth.ts",
		"src/sections/Hero.tsx",
		"src/services/api.ts",
		"src/services/database.ts",
	}, s.ModifiedPaths())

	db, err := os.ReadFile(filepath.Join(dir, "src/services/database.ts"))
	require.NoError(t, err)
	assert.Contains(t, string(db), "MongoClient")
	assert.Contains(t, string(db), "mongodb://db")

	generic, err := os.ReadFile(filepath.Join(dir, "src/components/ImproveCodeQuality.tsx"))
	require.NoError(t, err)
	assert.Contains(t, string(generic), "export default function ImproveCodeQuality()")
}

func TestImplementFeatures_PostgresConfig(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, Options{DatabaseType: DatabasePostgres, DatabaseURL: "postgres://x", DatabaseSSL: true})
	_, err := s.ImplementFeatures(context.Background(), []string{"database"}, "")
	require.NoError(t, err)

	db, err := os.ReadFile(filepath.Join(dir, "src/services/database.ts"))
	require.NoError(t, err)
	assert.Contains(t, string(db), "'postgres://x'")
	assert.Contains(t, string(db), "ssl: true")
}

func TestImplementFeatures_PartialFailure(t *testing.T) {
	s := New(t.TempDir(), Options{})

	implemented, err := s.ImplementFeatures(context.Background(), []string{"hero", "__", "styling"}, "")

	assert.Equal(t, []string{"hero", "styling"}, implemented)
	require.Error(t, err)
	var multi *ierr.MultiError
	require.ErrorAs(t, err, &multi)
	assert.Len(t, multi.Errors, 1)
	assert.Contains(t, err.Error(), "__")
}

func TestImplementFeatures_TemplateOverride(t *testing.T) {
	overrides := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(overrides, "features"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(overrides, "features", "hero.tsx"), []byte("export const Hero = '{{title}}'\n"), 0644))

	dir := t.TempDir()
	s := New(dir, Options{Name: "Custom", TemplateDir: overrides})
	_, err := s.ImplementFeatures(context.Background(), []string{"hero"}, "")
	require.NoError(t, err)

	hero, err := os.ReadFile(filepath.Join(dir, "src/sections/Hero.tsx"))
	require.NoError(t, err)
	assert.Equal(t, "export const Hero = 'Custom'\n", string(hero))
}

func TestImplementFeatures_RewriteCountsDiff(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "src/sections/Hero.tsx")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("old line\n"), 0644))

	s := New(dir, Options{Name: "x"})
	_, err := s.ImplementFeatures(context.Background(), []string{"hero"}, "")
	require.NoError(t, err)

	changes := s.Changes()
	require.Len(t, changes, 1)
	assert.False(t, changes[0].IsNew)
	assert.Equal(t, 1, changes[0].Deletions)
	assert.Positive(t, changes[0].Additions)
}

func TestDiffStat(t *testing.T) {
	add, del := diffStat("f.txt", "a\nb\n", "a\nc\nd\n")
	assert.Equal(t, 2, add)
	assert.Equal(t, 1, del)

	add, del = diffStat("f.txt", "same\n", "same\n")
	assert.Zero(t, add)
	assert.Zero(t, del)
}

func TestCommands(t *testing.T) {
	hook := func(cmd string) *hooks.HookConfig { return &hooks.HookConfig{Command: cmd, Timeout: 5} }

	t.Run("install hook succeeds", func(t *testing.T) {
		s := New(t.TempDir(), Options{Hooks: &hooks.Config{Hooks: hooks.HooksConfig{Install: hook("true")}}})
		assert.NoError(t, s.InstallDependencies(context.Background()))
	})

	t.Run("install failure is transient with output", func(t *testing.T) {
		s := New(t.TempDir(), Options{Hooks: &hooks.Config{Hooks: hooks.HooksConfig{Install: hook("echo boom >&2; exit 3")}}})
		err := s.InstallDependencies(context.Background())
		require.Error(t, err)
		assert.True(t, ierr.IsTransient(err))

		var cmdErr *CommandError
		require.True(t, errors.As(err, &cmdErr))
		assert.Equal(t, 3, cmdErr.Result.ExitCode)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("hook without timeout uses the step timeout", func(t *testing.T) {
		s := New(t.TempDir(), Options{
			InstallTimeout: 100 * time.Millisecond,
			Hooks:          &hooks.Config{Hooks: hooks.HooksConfig{Install: &hooks.HookConfig{Command: "sleep 5"}}},
		})
		err := s.InstallDependencies(context.Background())
		require.Error(t, err)

		var cmdErr *CommandError
		require.True(t, errors.As(err, &cmdErr))
		assert.True(t, cmdErr.Result.TimedOut)
		assert.Less(t, cmdErr.Result.Duration, 3*time.Second)
	})

	t.Run("build returns the dist directory", func(t *testing.T) {
		dir := t.TempDir()
		s := New(dir, Options{Hooks: &hooks.Config{Hooks: hooks.HooksConfig{Build: hook("mkdir -p dist")}}})
		out, err := s.Build(context.Background())
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "dist"), out)
		assert.DirExists(t, out)
	})

	t.Run("build failure falls back to stdout", func(t *testing.T) {
		s := New(t.TempDir(), Options{Hooks: &hooks.Config{Hooks: hooks.HooksConfig{Build: hook("echo compile error; exit 1")}}})
		_, err := s.Build(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "compile error")
	})
}
