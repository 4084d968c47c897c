package storage

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/mkarpov/chronicle/internal/codec"
	"github.com/mkarpov/chronicle/internal/fsx"
	"github.com/mkarpov/chronicle/internal/jsonstream"
	"github.com/mkarpov/chronicle/internal/logging"
	"github.com/mkarpov/chronicle/internal/types"
)

// Tx is the storage handle a transaction body works with. It queues
// entries, deletions, assets, and an optional configuration replacement;
// nothing touches disk until the body returns. The handle is dead once
// Transaction returns.
type Tx struct {
	caps fsx.Capabilities
	log  *logging.Logger

	workTree   string
	dataPath   string
	configPath string
	dataFile   *fsx.ExistingFile // nil when data.json was absent at transaction start
	configFile *fsx.ExistingFile // nil when config.json was absent

	newEntries []types.Event
	deletedIDs map[string]bool
	deleteSeq  []string // identifiers in first-queued order
	newAssets  []types.Asset
	newConfig  *types.Config

	entriesCached bool
	entriesCache  []types.Event
	configCached  bool
	configCache   *types.Config

	closed bool
}

// newTx binds the data and config file handles for the transaction scope.
func newTx(ctx context.Context, caps fsx.Capabilities, log *logging.Logger, workTree string) (*Tx, error) {
	tx := &Tx{
		caps:       caps,
		log:        log,
		workTree:   workTree,
		dataPath:   filepath.Join(workTree, dataFileName),
		configPath: filepath.Join(workTree, configFileName),
		deletedIDs: make(map[string]bool),
	}

	var err error
	tx.dataFile, err = checkOptional(ctx, caps.Checker, tx.dataPath)
	if err != nil {
		return nil, err
	}
	tx.configFile, err = checkOptional(ctx, caps.Checker, tx.configPath)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// checkOptional turns "does not exist" into a nil handle.
func checkOptional(ctx context.Context, checker fsx.Checker, path string) (*fsx.ExistingFile, error) {
	file, err := checker.Check(ctx, path)
	if err != nil {
		if errors.Is(err, fsx.ErrNotExists) {
			return nil, nil
		}
		return nil, err
	}
	return file, nil
}

// AddEntry queues an event and its assets. No validation happens here.
func (tx *Tx) AddEntry(event types.Event, assets ...types.Asset) {
	tx.newEntries = append(tx.newEntries, event)
	tx.newAssets = append(tx.newAssets, assets...)
}

// DeleteEntry queues an id for deletion. A queued entry with the same
// identifier is dropped; duplicate deletions coalesce.
func (tx *Tx) DeleteEntry(id types.EventID) {
	if !tx.deletedIDs[id.Identifier] {
		tx.deletedIDs[id.Identifier] = true
		tx.deleteSeq = append(tx.deleteSeq, id.Identifier)
	}

	kept := tx.newEntries[:0]
	for _, e := range tx.newEntries {
		if e.ID.Identifier != id.Identifier {
			kept = append(kept, e)
		}
	}
	tx.newEntries = kept
}

// DeletedIDs returns the identifiers queued for deletion, in the order
// they were first queued.
func (tx *Tx) DeletedIDs() []string {
	return append([]string(nil), tx.deleteSeq...)
}

// SetConfig queues a configuration replacement. Replace, not merge.
func (tx *Tx) SetConfig(config types.Config) {
	c := config
	tx.newConfig = &c
}

// NewConfig returns the pending replacement, or nil.
func (tx *Tx) NewConfig() *types.Config {
	return tx.newConfig
}

// ExistingEntries returns the events of the pre-transaction data.json
// snapshot. The file is read on first call only; later calls return the
// same slice. A file absent at transaction start yields the empty sequence;
// an unreadable file yields the empty sequence with a warning; records that
// fail validation are skipped with a warning.
func (tx *Tx) ExistingEntries(ctx context.Context) ([]types.Event, error) {
	if tx.closed {
		return nil, ErrTransactionClosed
	}
	if tx.entriesCached {
		return tx.entriesCache, nil
	}

	tx.entriesCached = true
	tx.entriesCache = []types.Event{}
	if tx.dataFile == nil {
		return tx.entriesCache, nil
	}

	values, err := jsonstream.ReadObjects(ctx, tx.caps.Reader, tx.dataFile.Path())
	if err != nil {
		var ioErr *jsonstream.IOError
		if errors.As(err, &ioErr) {
			tx.log.Warnw("event log unreadable, treating as empty", "path", tx.dataFile.Path(), "error", err.Error())
			return tx.entriesCache, nil
		}
		return nil, err
	}

	for i, v := range values {
		event, schemaErr := codec.TryDeserializeEvent(v)
		if schemaErr != nil {
			tx.log.Warnw("skipping invalid event record",
				"path", tx.dataFile.Path(),
				"index", i,
				"field", schemaField(schemaErr),
				"error", schemaErr.Error())
			continue
		}
		tx.entriesCache = append(tx.entriesCache, event)
	}
	return tx.entriesCache, nil
}

// ExistingConfig returns the pre-transaction configuration, or nil when
// config.json was absent or invalid. Cached after the first read.
func (tx *Tx) ExistingConfig(ctx context.Context) (*types.Config, error) {
	if tx.closed {
		return nil, ErrTransactionClosed
	}
	if tx.configCached {
		return tx.configCache, nil
	}

	tx.configCached = true
	if tx.configFile == nil {
		return nil, nil
	}

	values, err := jsonstream.ReadObjects(ctx, tx.caps.Reader, tx.configFile.Path())
	if err != nil || len(values) == 0 {
		if err != nil {
			tx.log.Warnw("config unreadable, treating as absent", "path", tx.configFile.Path(), "error", err.Error())
		}
		return nil, nil
	}

	config, schemaErr := codec.TryDeserializeConfig(values[0])
	if schemaErr != nil {
		tx.log.Warnw("invalid config, treating as absent",
			"path", tx.configFile.Path(),
			"field", schemaField(schemaErr),
			"error", schemaErr.Error())
		return nil, nil
	}
	tx.configCache = &config
	return tx.configCache, nil
}

// close marks the handle dead. Snapshot getters fail afterwards.
func (tx *Tx) close() {
	tx.closed = true
}

// schemaField extracts the offending field name for warning context.
func schemaField(err codec.SchemaError) string {
	switch e := err.(type) {
	case *codec.MissingFieldError:
		return e.Field
	case *codec.InvalidTypeError:
		return e.Field
	case *codec.InvalidValueError:
		return e.Field
	case *codec.InvalidArrayElementError:
		return e.ArrayField
	case *codec.NestedFieldError:
		return e.ParentField + "." + e.NestedField
	default:
		return ""
	}
}
