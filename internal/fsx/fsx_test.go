package fsx_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mkarpov/chronicle/internal/fsx"
)

func TestOSReadWriteAppend(t *testing.T) {
	ctx := context.Background()
	caps := fsx.OS()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")

	if err := caps.Writer.WriteFile(ctx, path, []byte("one\n")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := caps.Appender.AppendFile(ctx, path, []byte("two\n")); err != nil {
		t.Fatalf("AppendFile() error = %v", err)
	}

	data, err := caps.Reader.ReadFile(ctx, path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "one\ntwo\n" {
		t.Errorf("contents = %q, want %q", data, "one\ntwo\n")
	}
}

func TestOSCheck(t *testing.T) {
	ctx := context.Background()
	caps := fsx.OS()
	dir := t.TempDir()
	path := filepath.Join(dir, "present.txt")

	if _, err := caps.Checker.Check(ctx, path); !errors.Is(err, fsx.ErrNotExists) {
		t.Fatalf("Check(missing) error = %v, want ErrNotExists", err)
	}

	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	file, err := caps.Checker.Check(ctx, path)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if file.Path() != path {
		t.Errorf("Path() = %q, want %q", file.Path(), path)
	}

	// A directory is not a checkable file.
	if _, err := caps.Checker.Check(ctx, dir); err == nil {
		t.Error("Check(directory) succeeded, want error")
	}
}

func TestOSCopy(t *testing.T) {
	ctx := context.Background()
	caps := fsx.OS()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	payload := []byte("test content")

	if err := os.WriteFile(src, payload, 0600); err != nil {
		t.Fatal(err)
	}
	file, err := caps.Checker.Check(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	if err := caps.Copier.Copy(ctx, file, dst); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("copied bytes = %q, want %q", got, payload)
	}
}

func TestOSDelete(t *testing.T) {
	ctx := context.Background()
	caps := fsx.OS()
	path := filepath.Join(t.TempDir(), "gone.txt")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := caps.Deleter.Delete(ctx, path); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still present after Delete: %v", err)
	}
	if err := caps.Deleter.Delete(ctx, path); err == nil {
		t.Error("Delete(missing) succeeded, want error")
	}
}

func TestOSCreateFileAndMkdirAll(t *testing.T) {
	ctx := context.Background()
	caps := fsx.OS()
	dir := t.TempDir()

	nested := filepath.Join(dir, "a", "b", "c")
	if err := caps.Creator.MkdirAll(ctx, nested); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	path := filepath.Join(nested, "empty.json")
	if err := caps.Creator.CreateFile(ctx, path); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("created file size = %d, want 0", info.Size())
	}

	// CreateFile must not truncate an existing file.
	if err := os.WriteFile(path, []byte("keep"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := caps.Creator.CreateFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "keep" {
		t.Errorf("CreateFile truncated existing file: %q", got)
	}
}

func TestMemFSFailureInjection(t *testing.T) {
	ctx := context.Background()
	mem := fsx.NewMemFS()
	mem.Seed("/in/a.txt", []byte("payload"))

	boom := errors.New("disk full")
	mem.FailCopy = map[string]error{"/out/a.txt": boom}

	file, err := mem.Check(ctx, "/in/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if err := mem.Copy(ctx, file, "/out/a.txt"); !errors.Is(err, boom) {
		t.Fatalf("Copy() error = %v, want injected", err)
	}
	if err := mem.Copy(ctx, file, "/out/b.txt"); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if !bytes.Equal(mem.Bytes("/out/b.txt"), []byte("payload")) {
		t.Error("copy did not preserve bytes")
	}

	mem.FailDelete = map[string]error{"/out/b.txt": boom}
	if err := mem.Delete(ctx, "/out/b.txt"); !errors.Is(err, boom) {
		t.Fatalf("Delete() error = %v, want injected", err)
	}
	if len(mem.DeleteLog) != 1 || mem.DeleteLog[0] != "/out/b.txt" {
		t.Errorf("DeleteLog = %v, want the failed attempt recorded", mem.DeleteLog)
	}
}

func TestMemFSCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mem := fsx.NewMemFS()
	if _, err := mem.ReadFile(ctx, "/x"); err == nil {
		t.Error("expected error from cancelled context")
	}
	if err := mem.WriteFile(ctx, "/x", nil); err == nil {
		t.Error("expected error from cancelled context")
	}
}
