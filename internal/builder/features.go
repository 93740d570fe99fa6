package builder

import (
	"context"
	"fmt"
	"strings"

	ierr "github.com/mark3labs/forgeloop/internal/errors"
	"github.com/mark3labs/forgeloop/internal/logger"
	"github.com/mark3labs/forgeloop/internal/template"
)

// generator writes the files for one feature.
type generator func(s *Scaffold, feature string) error

// pickGenerator routes a feature tag to its generator. Unknown tags get a
// generic component named after the tag.
func pickGenerator(feature string) generator {
	f := strings.ToLower(feature)
	switch {
	case strings.Contains(f, "navigation"), strings.Contains(f, "navbar"):
		return fileGenerator("src/components/Navigation.tsx", "features/navigation.tsx")
	case strings.Contains(f, "hero"):
		return fileGenerator("src/sections/Hero.tsx", "features/hero.tsx")
	case strings.Contains(f, "api"), strings.Contains(f, "backend"):
		return fileGenerator("src/services/api.ts", "features/api.ts")
	case strings.Contains(f, "database"):
		return databaseGenerator
	case strings.Contains(f, "authentication"), strings.Contains(f, "auth"):
		return fileGenerator("src/hooks/useAuth.ts", "features/auth.ts")
	default:
		return componentGenerator
	}
}

func fileGenerator(rel, name string) generator {
	return func(s *Scaffold, feature string) error {
		vars := s.vars()
		vars.Feature = feature
		return s.writeTemplate(rel, name, vars)
	}
}

func databaseGenerator(s *Scaffold, feature string) error {
	name := "features/postgres.ts"
	if s.opts.DatabaseType == DatabaseMongo {
		name = "features/mongo.ts"
	}
	return fileGenerator("src/services/database.ts", name)(s, feature)
}

func componentGenerator(s *Scaffold, feature string) error {
	component := template.ComponentName(feature)
	if component == "" {
		return fmt.Errorf("cannot derive a component name from %q", feature)
	}
	vars := s.vars()
	vars.Feature = feature
	vars.Component = component
	return s.writeTemplate("src/components/"+component+".tsx", "features/component.tsx", vars)
}

// ImplementFeatures writes the files for each requested feature and returns
// the tags that were implemented. A failing feature does not stop the others;
// their errors are returned together.
func (s *Scaffold) ImplementFeatures(ctx context.Context, features []string, feedback string) ([]string, error) {
	s.tracker.Clear()
	if feedback != "" {
		logger.Debug("Implementing %d features against %d feedback lines", len(features), strings.Count(feedback, "\n")+1)
	}

	var implemented []string
	var errs ierr.MultiError
	for _, feature := range features {
		if err := ctx.Err(); err != nil {
			errs.Append(err)
			break
		}
		gen := pickGenerator(feature)
		err := ierr.Recover(func() error { return gen(s, feature) })
		if err != nil {
			logger.Warn("Feature %s failed: %v", feature, err)
			errs.Append(fmt.Errorf("%s: %w", feature, err))
			continue
		}
		implemented = append(implemented, feature)
	}

	logger.Info("Implemented %d of %d features, %d files changed", len(implemented), len(features), len(s.tracker.ModifiedPaths()))
	return implemented, errs.ErrorOrNil()
}
