// Package publish exports a generated project to a GitHub repository using
// the git CLI, optionally creating the repository through the REST API first.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/mark3labs/forgeloop/internal/git"
	"github.com/mark3labs/forgeloop/internal/logger"
)

// DefaultCommitMessage is used when Options.Message is empty.
const DefaultCommitMessage = "Initial commit from forgeloop"

// branches are tried in order when pushing.
var branches = []string{"main", "master"}

const defaultGitignore = `node_modules/
dist/
build/
.env
.env.local
*.log
.DS_Store
.vscode/
.idea/
`

// Options controls an export.
type Options struct {
	RepoName     string // "name" or "owner/name"
	Token        string
	Organization string
	Private      bool
	CreateRepo   bool   // create the repository via the API before pushing
	Message      string // commit message
	RemoteURL    string // overrides the github.com remote, e.g. a local bare repo
	API          *Client
}

// Result describes a successful export.
type Result struct {
	URL     string
	Branch  string
	Commit  string
	Created bool
}

// Message renders the result for humans.
func (r *Result) Message() string {
	msg := "Project exported successfully to " + r.URL
	if r.Commit != "" {
		msg += fmt.Sprintf(" (%s on %s)", r.Commit, r.Branch)
	}
	if r.Created {
		msg += ", repository created"
	}
	return msg
}

// RepoSlug normalizes a repository name, keeping an optional owner prefix.
func RepoSlug(name string) string {
	owner, repo, ok := strings.Cut(strings.TrimSpace(name), "/")
	if !ok {
		return slug.Make(owner)
	}
	return owner + "/" + slug.Make(repo)
}

// Export commits everything under dir and pushes it to the target repository.
func Export(ctx context.Context, dir string, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.RepoName) == "" {
		return nil, errors.New("repo_name is required")
	}
	if opts.Token == "" && opts.RemoteURL == "" {
		return nil, errors.New("github_token is required")
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("project directory: %w", err)
	}
	if err := git.Available(); err != nil {
		return nil, err
	}

	res, err := export(ctx, dir, opts)
	if err != nil {
		return nil, redact(err, opts.Token)
	}
	return res, nil
}

func export(ctx context.Context, dir string, opts Options) (*Result, error) {
	if err := prepare(ctx, dir); err != nil {
		return nil, err
	}

	message := opts.Message
	if message == "" {
		message = DefaultCommitMessage
	}
	if err := git.AddAll(ctx, dir); err != nil {
		return nil, err
	}
	if err := git.Commit(ctx, dir, message); err != nil {
		// Nothing to commit is fine as long as there is history to push.
		if info, _ := git.GetInfo(dir); info == nil {
			return nil, err
		}
		logger.Debug("Commit skipped: %v", err)
	}

	owner, name := splitRepo(RepoSlug(opts.RepoName), opts.Organization)
	res := &Result{}

	if opts.CreateRepo && opts.Token != "" {
		api := opts.API
		if api == nil {
			api = NewClient(opts.Token)
		}
		repo, created, err := api.CreateRepo(ctx, owner, name, opts.Private)
		if err != nil {
			return nil, err
		}
		res.Created = created
		if repo.FullName != "" {
			owner, name = splitRepo(repo.FullName, "")
		}
	}

	remote := opts.RemoteURL
	if remote == "" {
		if owner == "" {
			return nil, errors.New("repository owner unknown: pass owner/name or an organization")
		}
		remote = fmt.Sprintf("https://x-access-token:%s@github.com/%s/%s.git", opts.Token, owner, name)
	}
	if err := git.SetRemote(ctx, dir, "origin", remote); err != nil {
		return nil, err
	}

	branch, err := push(ctx, dir)
	if err != nil {
		return nil, err
	}
	res.Branch = branch

	if info, _ := git.GetInfo(dir); info != nil {
		res.Commit = info.Hash
	}
	if owner != "" {
		res.URL = fmt.Sprintf("https://github.com/%s/%s", owner, name)
	} else {
		res.URL = remote
	}
	logger.Info("Exported %s to %s", dir, res.URL)
	return res, nil
}

// prepare initializes the repository and a default .gitignore on first export.
func prepare(ctx context.Context, dir string) error {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return nil
	}
	if err := git.Init(ctx, dir); err != nil {
		return err
	}
	ignore := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(ignore); os.IsNotExist(err) {
		if err := os.WriteFile(ignore, []byte(defaultGitignore), 0644); err != nil {
			return fmt.Errorf("writing .gitignore: %w", err)
		}
	}
	return nil
}

func push(ctx context.Context, dir string) (string, error) {
	var errs []error
	for _, branch := range branches {
		err := git.Push(ctx, dir, branch)
		if err == nil {
			return branch, nil
		}
		errs = append(errs, err)
	}
	return "", fmt.Errorf("git push failed: %w", errors.Join(errs...))
}

func splitRepo(name, org string) (owner, repo string) {
	if o, r, ok := strings.Cut(name, "/"); ok {
		owner, repo = o, r
	} else {
		repo = name
	}
	if org != "" {
		owner = org
	}
	return owner, repo
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// redact masks the token in error text; git echoes remote URLs on failure.
func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), token, "****"), err: err}
}
