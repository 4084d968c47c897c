package gitstore

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

const (
	// localTimeout bounds git operations that touch only the working tree.
	localTimeout = 10 * time.Second
	// networkTimeout bounds clone, fetch, and push.
	networkTimeout = 2 * time.Minute
)

// git runs a local git command in dir and returns its combined output.
func git(ctx context.Context, dir string, args ...string) ([]byte, error) {
	return runGit(ctx, dir, localTimeout, args)
}

// gitNetwork runs a git command that involves the remote.
func gitNetwork(ctx context.Context, dir string, args ...string) ([]byte, error) {
	return runGit(ctx, dir, networkTimeout, args)
}

func runGit(ctx context.Context, dir string, timeout time.Duration, args []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("git %v in %s: %w (output: %s)", args, dir, err, out)
	}
	return out, nil
}
