// Package storage is the transactional event-log store. A transaction
// accumulates event entries, deletions, binary assets, and an optional
// configuration replacement, then persists them as one logical unit: the
// serialized log and configuration are committed to the versioned working
// copy, and assets are copied into their deterministic layout. Any failure
// after asset placement began triggers best-effort deletion of every
// placed asset before the error propagates.
package storage

import (
	"context"
	"path/filepath"

	"github.com/mkarpov/chronicle/internal/assetpath"
	"github.com/mkarpov/chronicle/internal/codec"
	"github.com/mkarpov/chronicle/internal/environment"
	"github.com/mkarpov/chronicle/internal/fsx"
	"github.com/mkarpov/chronicle/internal/gitstore"
	"github.com/mkarpov/chronicle/internal/jsonstream"
	"github.com/mkarpov/chronicle/internal/logging"
	"github.com/mkarpov/chronicle/internal/types"
)

const (
	dataFileName   = "data.json"
	configFileName = "config.json"
	commitMessage  = "Event log storage update"
)

// Session is what the engine needs from a working-copy session.
type Session interface {
	Commit(ctx context.Context, message string) error
	WorkTree() string
}

// VersionedCopy is what the engine needs from the version-control layer.
// Production wires the git-backed store; tests wire a fake.
type VersionedCopy interface {
	Transaction(ctx context.Context, remote, workDir string, body func(Session) error) error
}

// GitBackend adapts *gitstore.Store to the VersionedCopy interface.
func GitBackend(store *gitstore.Store) VersionedCopy {
	return gitBackend{store: store}
}

type gitBackend struct {
	store *gitstore.Store
}

func (g gitBackend) Transaction(ctx context.Context, remote, workDir string, body func(Session) error) error {
	return g.store.Transaction(ctx, remote, workDir, func(sess *gitstore.Session) error {
		return body(sess)
	})
}

// Storage is the transaction engine.
type Storage struct {
	caps fsx.Capabilities
	vcs  VersionedCopy
	env  environment.Env
	log  *logging.Logger
}

// New wires the engine's capabilities.
func New(caps fsx.Capabilities, vcs VersionedCopy, env environment.Env, log *logging.Logger) *Storage {
	return &Storage{caps: caps, vcs: vcs, env: env, log: log}
}

// Transaction opens a working-copy session, runs body with a storage
// handle, and persists whatever the body queued. The handle is dead once
// Transaction returns.
//
// Persistence order: entries appended (or the log rewritten when deletions
// are queued), configuration replaced, one commit when anything changed,
// then assets copied. Assets follow the commit so that a failed commit
// needs no asset cleanup; any error after asset placement began deletes
// every queued asset's target before the error is returned.
func (s *Storage) Transaction(ctx context.Context, body func(context.Context, *Tx) error) error {
	var tx *Tx
	err := s.vcs.Transaction(ctx, s.env.EventLogRepository(), s.env.WorkingDirectory(), func(sess Session) error {
		var err error
		tx, err = newTx(ctx, s.caps, s.log, sess.WorkTree())
		if err != nil {
			return err
		}
		defer tx.close()

		if err := body(ctx, tx); err != nil {
			return err
		}
		return s.persist(ctx, sess, tx)
	})
	if err != nil && tx != nil {
		s.compensate(ctx, tx)
	}
	return err
}

// persist applies the queued state to the working copy.
func (s *Storage) persist(ctx context.Context, sess Session, tx *Tx) error {
	hasEntries := len(tx.newEntries) > 0
	hasConfig := tx.newConfig != nil
	hasDeletions := len(tx.deletedIDs) > 0

	if hasDeletions {
		if err := s.rewriteLog(ctx, tx); err != nil {
			return err
		}
	} else if hasEntries {
		if err := s.appendEntries(ctx, tx); err != nil {
			return err
		}
	}

	if hasConfig {
		data, err := codec.EncodeConfigJSON(*tx.newConfig)
		if err != nil {
			return err
		}
		if err := s.caps.Writer.WriteFile(ctx, tx.configPath, data); err != nil {
			return err
		}
	}

	if hasEntries || hasConfig || hasDeletions {
		if err := sess.Commit(ctx, commitMessage); err != nil {
			return err
		}
	}

	return s.placeAssets(ctx, tx)
}

// appendEntries appends each queued entry to data.json in insertion order,
// creating the file when it was absent at transaction start.
func (s *Storage) appendEntries(ctx context.Context, tx *Tx) error {
	if tx.dataFile == nil {
		if err := s.caps.Creator.CreateFile(ctx, tx.dataPath); err != nil {
			return err
		}
	}
	for _, event := range tx.newEntries {
		data, err := codec.EncodeEventJSON(event)
		if err != nil {
			return err
		}
		if err := s.caps.Appender.AppendFile(ctx, tx.dataPath, data); err != nil {
			return err
		}
	}
	return nil
}

// rewriteLog reads the on-disk log, drops deleted entries, and rewrites the
// file as survivors followed by the queued new entries. Records that fail
// validation during the rewrite are dropped with a warning; their ids
// cannot be checked against the deletion set.
func (s *Storage) rewriteLog(ctx context.Context, tx *Tx) error {
	if tx.dataFile == nil && len(tx.newEntries) == 0 {
		// Deleting from a log that does not exist changes nothing.
		return nil
	}

	var survivors []types.Event
	if tx.dataFile != nil {
		values, err := jsonstream.ReadObjects(ctx, s.caps.Reader, tx.dataFile.Path())
		if err != nil {
			return err
		}
		for i, v := range values {
			event, schemaErr := codec.TryDeserializeEvent(v)
			if schemaErr != nil {
				s.log.Warnw("dropping invalid event record during rewrite",
					"path", tx.dataPath, "index", i, "error", schemaErr.Error())
				continue
			}
			if tx.deletedIDs[event.ID.Identifier] {
				continue
			}
			survivors = append(survivors, event)
		}
	}

	var out []byte
	for _, event := range append(survivors, tx.newEntries...) {
		data, err := codec.EncodeEventJSON(event)
		if err != nil {
			return err
		}
		out = append(out, data...)
	}
	return s.caps.Writer.WriteFile(ctx, tx.dataPath, out)
}

// placeAssets copies each queued asset into the layout, creating parent
// directories on demand. Assets are copied in insertion order.
func (s *Storage) placeAssets(ctx context.Context, tx *Tx) error {
	assetsRoot := s.env.EventLogAssetsDirectory()
	for _, asset := range tx.newAssets {
		target := assetpath.TargetPath(assetsRoot, asset)
		if err := s.caps.Creator.MkdirAll(ctx, filepath.Dir(target)); err != nil {
			return &AssetCopyFailedError{Target: target, Err: err}
		}
		if err := s.caps.Copier.Copy(ctx, asset.File, target); err != nil {
			return &AssetCopyFailedError{Target: target, Err: err}
		}
	}
	return nil
}

// compensate attempts to delete every queued asset's target path. Failures
// are logged and swallowed; the original error always wins.
func (s *Storage) compensate(ctx context.Context, tx *Tx) {
	assetsRoot := s.env.EventLogAssetsDirectory()
	for _, asset := range tx.newAssets {
		target := assetpath.TargetPath(assetsRoot, asset)
		if err := s.caps.Deleter.Delete(ctx, target); err != nil {
			s.log.Warnw("asset cleanup failed", "target", target, "error", err.Error())
		}
	}
}
