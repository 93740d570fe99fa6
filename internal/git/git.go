// Package git wraps the git CLI for the few operations forgeloop needs on a
// generated project: inspecting it and publishing it to a remote.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNotInstalled is returned when no git binary is on PATH.
var ErrNotInstalled = errors.New("git is not installed or not in PATH")

// Info describes the checked-out state of a repository.
type Info struct {
	Branch string
	Hash   string // short hash of HEAD
	Dirty  bool
	Ahead  int
	Behind int
}

// Available reports whether a git binary can be found.
func Available() error {
	if _, err := exec.LookPath("git"); err != nil {
		return ErrNotInstalled
	}
	return nil
}

// Run executes git with args in dir and returns its trimmed combined output.
func Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	output := strings.TrimRight(string(out), " \t\r\n")
	if err != nil {
		return output, fmt.Errorf("git %s: %s: %w", args[0], output, err)
	}
	return output, nil
}

func runGit(dir string, args ...string) (string, error) {
	return Run(context.Background(), dir, args...)
}

// GetInfo returns the state of the repository at dir, or nil when dir is
// not inside a work tree or has no commits yet.
func GetInfo(dir string) (*Info, error) {
	if out, err := runGit(dir, "rev-parse", "--is-inside-work-tree"); err != nil || out != "true" {
		return nil, nil
	}

	hash, err := runGit(dir, "rev-parse", "--short=7", "HEAD")
	if err != nil {
		return nil, nil
	}

	branch, err := runGit(dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, err
	}

	status, err := runGit(dir, "status", "--porcelain")
	if err != nil {
		return nil, err
	}

	info := &Info{Branch: branch, Hash: hash, Dirty: status != ""}

	// No upstream leaves ahead/behind at zero.
	if counts, err := runGit(dir, "rev-list", "--left-right", "--count", "HEAD...@{upstream}"); err == nil {
		if fields := strings.Fields(counts); len(fields) == 2 {
			info.Ahead, _ = strconv.Atoi(fields[0])
			info.Behind, _ = strconv.Atoi(fields[1])
		}
	}
	return info, nil
}

// Init creates a repository in dir.
func Init(ctx context.Context, dir string) error {
	_, err := Run(ctx, dir, "init")
	return err
}

// AddAll stages every change in dir.
func AddAll(ctx context.Context, dir string) error {
	_, err := Run(ctx, dir, "add", ".")
	return err
}

// Commit records the staged changes with message.
func Commit(ctx context.Context, dir, message string) error {
	_, err := Run(ctx, dir, "commit", "-m", message)
	return err
}

// SetRemote points name at url, replacing any existing remote of that name.
func SetRemote(ctx context.Context, dir, name, url string) error {
	_, _ = Run(ctx, dir, "remote", "remove", name)
	_, err := Run(ctx, dir, "remote", "add", name, url)
	return err
}

// Push pushes branch to origin and sets it as upstream.
func Push(ctx context.Context, dir, branch string) error {
	_, err := Run(ctx, dir, "push", "-u", "origin", branch)
	return err
}
