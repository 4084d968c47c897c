// Package gitstore is a narrow facade over a git repository: it mirrors a
// remote into a local working directory and exposes scoped transactions
// that commit on demand and push on success.
package gitstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mkarpov/chronicle/internal/logging"
)

// Store coordinates working-copy sessions. One transaction runs per working
// directory at a time; concurrent attempts fail with ErrWorkingCopyBusy.
type Store struct {
	log      *logging.Logger
	inFlight sync.Map // workDir -> struct{}
}

// New creates a Store.
func New(log *logging.Logger) *Store {
	return &Store{log: log}
}

// Session is the handle a transaction body works with. It is only valid
// inside the body closure passed to Transaction.
type Session struct {
	workDir string
	commits int
}

// WorkTree returns the working tree root.
func (s *Session) WorkTree() string { return s.workDir }

// Commit stages everything in the working tree and commits it with the
// given message. When nothing is staged, Commit does nothing and succeeds.
func (s *Session) Commit(ctx context.Context, message string) error {
	if out, err := git(ctx, s.workDir, "add", "-A"); err != nil {
		return &CommitFailedError{Err: err, Output: string(out)}
	}

	status, err := git(ctx, s.workDir, "status", "--porcelain")
	if err != nil {
		return &CommitFailedError{Err: err, Output: string(status)}
	}
	if strings.TrimSpace(string(status)) == "" {
		return nil
	}

	out, err := git(ctx, s.workDir, "commit", "--no-verify", "-m", message)
	if err != nil {
		lower := strings.ToLower(string(out))
		if strings.Contains(lower, "nothing to commit") ||
			strings.Contains(lower, "nothing added to commit") {
			return nil
		}
		return &CommitFailedError{Err: err, Output: string(out)}
	}
	s.commits++
	return nil
}

// Transaction mirrors remote into workDir, fast-forwards it, and runs body
// on a session. On normal exit any commits the body produced are pushed.
// On exceptional exit uncommitted changes are discarded, nothing is pushed,
// and the body's error is returned unchanged.
func (s *Store) Transaction(ctx context.Context, remote, workDir string, body func(*Session) error) error {
	if _, loaded := s.inFlight.LoadOrStore(workDir, struct{}{}); loaded {
		return fmt.Errorf("%s: %w", workDir, ErrWorkingCopyBusy)
	}
	defer s.inFlight.Delete(workDir)

	if err := s.ensure(ctx, remote, workDir); err != nil {
		return err
	}

	sess := &Session{workDir: workDir}
	if err := body(sess); err != nil {
		s.discard(ctx, workDir)
		return err
	}

	if sess.commits == 0 {
		return nil
	}
	return s.push(ctx, workDir)
}

// Synchronize fast-forwards the working copy from the remote without
// opening a transaction. Read-only callers use this to refresh.
func (s *Store) Synchronize(ctx context.Context, remote, workDir string) error {
	return s.ensure(ctx, remote, workDir)
}

// ensure makes workDir a clone of remote at the latest remote state.
func (s *Store) ensure(ctx context.Context, remote, workDir string) error {
	if _, err := os.Stat(filepath.Join(workDir, ".git")); err != nil {
		if err := os.MkdirAll(filepath.Dir(workDir), 0750); err != nil {
			return &RepositoryUnavailableError{Remote: remote, Err: err}
		}
		if _, err := gitNetwork(ctx, "", "clone", remote, workDir); err != nil {
			return &RepositoryUnavailableError{Remote: remote, Err: err}
		}
		return nil
	}

	out, err := gitNetwork(ctx, workDir, "pull", "--ff-only")
	if err != nil {
		// A remote that exists but has no commits yet has nothing to
		// fast-forward from.
		lower := strings.ToLower(string(out) + err.Error())
		if strings.Contains(lower, "no such ref was fetched") ||
			strings.Contains(lower, "couldn't find remote ref") {
			return nil
		}
		return &RepositoryUnavailableError{Remote: remote, Err: err}
	}
	return nil
}

// discard drops uncommitted working-tree state after a failed body.
// Failures here are logged and swallowed; the body's error wins.
func (s *Store) discard(ctx context.Context, workDir string) {
	if out, err := git(ctx, workDir, "reset", "--hard"); err != nil {
		s.log.Warnw("discard: reset failed", "workdir", workDir, "error", err, "output", string(out))
	}
	if out, err := git(ctx, workDir, "clean", "-fd"); err != nil {
		s.log.Warnw("discard: clean failed", "workdir", workDir, "error", err, "output", string(out))
	}
}

func (s *Store) push(ctx context.Context, workDir string) error {
	out, err := gitNetwork(ctx, workDir, "push", "origin", "HEAD")
	if err != nil {
		return &PushFailedError{Err: err, Output: string(out)}
	}
	return nil
}
