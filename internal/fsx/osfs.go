package fsx

import (
	"context"
	"fmt"
	"io"
	"os"
)

// osFS implements every capability on top of the os package.
type osFS struct{}

// OS returns capabilities backed by the real filesystem.
func OS() Capabilities {
	fs := osFS{}
	return Capabilities{
		Reader:   fs,
		Writer:   fs,
		Appender: fs,
		Creator:  fs,
		Checker:  fs,
		Copier:   fs,
		Deleter:  fs,
	}
}

func (osFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304 - paths come from the engine's own layout
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (osFS) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (osFS) AppendFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // G304 - engine layout path
	if err != nil {
		return fmt.Errorf("open %s for append: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append to %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return nil
}

func (osFS) CreateFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600) //nolint:gosec // G304 - engine layout path
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return f.Close()
}

func (osFS) MkdirAll(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

func (osFS) TempDir(ctx context.Context, pattern string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("create temp directory: %w", err)
	}
	return dir, nil
}

func (osFS) Check(ctx context.Context, path string) (*ExistingFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotExists)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return newExistingFile(path), nil
}

func (osFS) Copy(ctx context.Context, src *ExistingFile, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(src.Path()) //nolint:gosec // G304 - source carries an existence proof
	if err != nil {
		return fmt.Errorf("open %s: %w", src.Path(), err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // G304 - engine layout path
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s to %s: %w", src.Path(), dst, err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	return out.Close()
}

func (osFS) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}
