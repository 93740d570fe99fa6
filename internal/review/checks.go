package review

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"
)

var anyType = regexp.MustCompile(`\bany\b`)

func verdict(ok bool) Status {
	if ok {
		return StatusPass
	}
	return StatusNeedsImprovement
}

func checkStructure(snap Snapshot) CheckResult {
	var issues, positives []string

	for _, file := range RequiredFiles {
		if snap.Exists(file) {
			positives = append(positives, "Found: "+file)
		} else {
			issues = append(issues, "Missing required file: "+file)
		}
	}
	for _, dir := range RequiredDirs {
		if snap.Exists(dir) {
			positives = append(positives, "Directory exists: "+dir)
		} else {
			issues = append(issues, "Missing directory: "+dir)
		}
	}

	return CheckResult{
		Status:    verdict(len(issues) == 0),
		Issues:    issues,
		Positives: positives,
	}
}

func checkCodeQuality(ctx context.Context, snap Snapshot, checker TypeChecker) CheckResult {
	var issues, positives []string

	if checker != nil {
		res := checker.TypeCheck(ctx, snap.Root())
		switch {
		case res.Success():
			positives = append(positives, "TypeScript compilation successful")
		case res.ExitCode > 0:
			out := res.Stderr
			if strings.TrimSpace(out) == "" {
				// tsc reports diagnostics on stdout
				out = res.Stdout
			}
			issues = append(issues, "TypeScript errors: "+truncate(out, TypeCheckOutputLimit))
		default:
			issues = append(issues, fmt.Sprintf("Could not check TypeScript: %v", res.Err))
		}
	}

	files, err := snap.Files("src", typeScriptExts...)
	if err != nil {
		issues = append(issues, fmt.Sprintf("Could not scan sources: %v", err))
	}
	for _, file := range files {
		name := path.Base(file)
		data, err := snap.ReadFile(file)
		if err != nil {
			issues = append(issues, fmt.Sprintf("Could not read %s: %v", name, err))
			continue
		}
		content := string(data)
		if strings.Contains(content, "export") {
			positives = append(positives, name+" has exports")
		}
		if strings.Contains(content, "function") || strings.Contains(content, "const") {
			positives = append(positives, name+" has functions/components")
		}
		if anyType.MatchString(content) {
			issues = append(issues, name+" uses 'any' type (consider using proper types)")
		}
	}

	return CheckResult{
		Status:    verdict(len(issues) < QualityIssueLimit),
		Issues:    limit(issues, MaxQualityItems),
		Positives: limit(positives, MaxQualityItems),
	}
}

func checkFunctionality(snap Snapshot) CheckResult {
	var issues, positives []string

	if snap.Exists("package.json") {
		var manifest struct {
			Scripts map[string]string `json:"scripts"`
		}
		data, err := snap.ReadFile("package.json")
		if err == nil {
			err = json.Unmarshal(data, &manifest)
		}
		if err != nil {
			issues = append(issues, fmt.Sprintf("Could not read package.json: %v", err))
		} else {
			if _, ok := manifest.Scripts["dev"]; ok {
				positives = append(positives, "Dev script configured")
			}
			if _, ok := manifest.Scripts["build"]; ok {
				positives = append(positives, "Build script configured")
			}
			if len(manifest.Scripts) == 0 {
				issues = append(issues, "No scripts in package.json")
			}
		}
	}

	const app = "src/App.tsx"
	if snap.Exists(app) {
		positives = append(positives, "App.tsx exists")
		data, err := snap.ReadFile(app)
		switch {
		case err != nil:
			issues = append(issues, fmt.Sprintf("Could not read App.tsx: %v", err))
		case rendersMarkup(string(data)):
			positives = append(positives, "App.tsx has JSX content")
		default:
			issues = append(issues, "App.tsx appears empty or incomplete")
		}
	} else {
		issues = append(issues, "App.tsx missing")
	}

	return CheckResult{
		Status:    verdict(len(issues) == 0),
		Issues:    issues,
		Positives: positives,
	}
}

func rendersMarkup(content string) bool {
	return strings.Contains(content, "return") &&
		(strings.Contains(content, "<") || strings.Contains(content, "JSX"))
}

func checkGoalAlignment(snap Snapshot, goal string) CheckResult {
	var issues, positives []string
	goalLower := strings.ToLower(goal)

	var sb strings.Builder
	files, _ := snap.Files("src", sourceExts...)
	for _, file := range files {
		// Unreadable files simply contribute nothing.
		if data, err := snap.ReadFile(file); err == nil {
			sb.WriteString(strings.ToLower(string(data)))
		}
	}
	content := sb.String()

	for _, cat := range GoalCategories {
		if !strings.Contains(goalLower, cat.Name) {
			continue
		}
		var found []string
		for _, kw := range cat.Keywords {
			if strings.Contains(content, kw) {
				found = append(found, kw)
			}
		}
		if len(found) > 0 {
			positives = append(positives, fmt.Sprintf("Found %s related code: %s", cat.Name, strings.Join(limit(found, 3), ", ")))
		} else {
			issues = append(issues, fmt.Sprintf("Goal mentions %s but no related code found", cat.Name))
		}
	}

	if len(positives) > len(issues) {
		positives = append(positives, "Project shows good goal alignment")
	} else {
		issues = append(issues, "Project may not fully align with stated goal")
	}

	return CheckResult{
		Status:    verdict(len(positives) > len(issues)),
		Issues:    issues,
		Positives: positives,
	}
}

func checkBestPractices(snap Snapshot) CheckResult {
	var issues, positives []string

	conventions := []struct {
		path    string
		present string
		missing string
	}{
		{".env.example", ".env.example file exists (good practice)", "Consider adding .env.example for configuration"},
		{"README.md", "README.md exists", "Consider adding README.md"},
		{".gitignore", ".gitignore exists", "Consider adding .gitignore"},
	}
	for _, c := range conventions {
		if snap.Exists(c.path) {
			positives = append(positives, c.present)
		} else {
			issues = append(issues, c.missing)
		}
	}

	if files, err := snap.Files("src", typeScriptExts...); err == nil && len(files) > 0 {
		positives = append(positives, fmt.Sprintf("Using TypeScript (%d files)", len(files)))
	}

	return CheckResult{
		Status:    verdict(len(issues) < BestPracticeIssueLimit),
		Issues:    issues,
		Positives: positives,
	}
}

func limit(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
