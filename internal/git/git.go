// Package git shells out to the git CLI for transcript archive commits.
package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// Client defines the git operations the archiver needs. All methods take a
// path parameter since the archive repo lives wherever it was cloned.
type Client interface {
	RepoRoot(path string) (string, error)
	Add(path string, files ...string) error
	Commit(path, message string) error
	Push(path string) error
	IsDirty(path string) (bool, error)
}

// RealClient implements Client using real git commands.
type RealClient struct{}

// NewClient returns a new RealClient.
func NewClient() *RealClient {
	return &RealClient{}
}

func gitCmd(path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path}, args...)
	out, err := exec.Command("git", fullArgs...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *RealClient) RepoRoot(path string) (string, error) {
	return gitCmd(path, "rev-parse", "--show-toplevel")
}

func (c *RealClient) Add(path string, files ...string) error {
	_, err := gitCmd(path, append([]string{"add", "--"}, files...)...)
	return err
}

func (c *RealClient) Commit(path, message string) error {
	_, err := gitCmd(path, "commit", "-m", message)
	return err
}

func (c *RealClient) Push(path string) error {
	_, err := gitCmd(path, "push")
	return err
}

func (c *RealClient) IsDirty(path string) (bool, error) {
	out, err := gitCmd(path, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}
