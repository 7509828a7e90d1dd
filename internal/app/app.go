// Package app wires configuration into the logger and the durable slot
// shared by the server and the interactive client.
package app

import (
	"fmt"

	"github.com/atinyakov/AccountKeeper/internal/config"
	"github.com/atinyakov/AccountKeeper/internal/db"
	"github.com/atinyakov/AccountKeeper/internal/keygen"
	"github.com/atinyakov/AccountKeeper/internal/logger"
	"github.com/atinyakov/AccountKeeper/internal/repository"
	"github.com/atinyakov/AccountKeeper/internal/storage"
	"go.uber.org/zap"
)

// NewLogger returns a logger at opts.LogLevel, writing to opts.LogFile when
// it is set and to stderr otherwise.
func NewLogger(opts *config.Options) (*logger.Logger, error) {
	log := logger.New()
	if opts.LogFile != "" {
		return log, log.InitFile(opts.LogLevel, opts.LogFile)
	}
	return log, log.Init(opts.LogLevel)
}

// OpenSlot opens the slot backend selected by opts.Storage. If
// opts.EncryptionKeyFile names a key written by keygen, the slot is wrapped
// in a storage.EncryptedSlot. The returned close function releases database
// connections.
func OpenSlot(opts *config.Options, log *zap.Logger) (storage.Slot, func() error, error) {
	noop := func() error { return nil }

	var (
		slot    storage.Slot
		closeFn = noop
	)
	switch opts.Storage {
	case config.StorageMemory:
		slot = storage.NewMemorySlot()
	case config.StorageFile:
		fs, err := storage.NewFileSlot(opts.StoragePath)
		if err != nil {
			return nil, noop, err
		}
		slot = fs
	case config.StoragePostgres:
		conn, err := db.InitPostgres(opts.DatabaseDSN)
		if err != nil {
			return nil, noop, err
		}
		slot, closeFn = repository.NewPostgresSlot(conn), conn.Close
	case config.StorageSQLite:
		conn, err := db.InitSQLite(opts.StoragePath)
		if err != nil {
			return nil, noop, err
		}
		slot, closeFn = repository.NewSQLiteSlot(conn), conn.Close
	default:
		return nil, noop, fmt.Errorf("unknown storage %q", opts.Storage)
	}

	if opts.EncryptionKeyFile != "" {
		secret, err := keygen.LoadKeyFile(opts.EncryptionKeyFile)
		if err != nil {
			_ = closeFn()
			return nil, noop, err
		}
		enc, err := storage.NewEncryptedSlot(slot, secret)
		if err != nil {
			_ = closeFn()
			return nil, noop, err
		}
		slot = enc
	}

	log.Info("storage ready",
		zap.String("backend", opts.Storage),
		zap.Bool("encrypted", opts.EncryptionKeyFile != ""),
	)
	return slot, closeFn, nil
}
