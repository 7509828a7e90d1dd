// Package config provides functionality for managing configuration options
// for the application using command-line flags, a config file and
// environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage backends accepted by the Storage option.
const (
	StorageFile     = "file"
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Options holds the configuration values for the application.
type Options struct {
	// Address defines the server's listening address (ip:port).
	Address string `json:"address" yaml:"address"`

	// Storage selects the durable slot backend.
	Storage string `json:"storage" yaml:"storage"`

	// StoragePath is the directory of the file slot or the SQLite database file.
	StoragePath string `json:"storage_path" yaml:"storage_path"`

	// DatabaseDSN holds the PostgreSQL connection string.
	DatabaseDSN string `json:"database_dsn" yaml:"database_dsn"`

	// SlotKey is the key the account list is stored under.
	SlotKey string `json:"slot_key" yaml:"slot_key"`

	// EncryptionKeyFile, if set, enables encryption of the stored slot with
	// a key derived from the file contents.
	EncryptionKeyFile string `json:"encryption_key_file" yaml:"encryption_key_file"`

	LogLevel string `json:"log_level" yaml:"log_level"`
	LogFile  string `json:"log_file" yaml:"log_file"`

	// Config is the path to the config file.
	Config string `json:"-" yaml:"-"`
}

func newFlagSet(name string, o *Options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&o.Address, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&o.Storage, "s", StorageFile, "storage backend: file | memory | postgres | sqlite")
	fs.StringVar(&o.StoragePath, "p", "data", "storage directory (file) or database file (sqlite)")
	fs.StringVar(&o.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&o.SlotKey, "k", "accounts", "storage slot key")
	fs.StringVar(&o.EncryptionKeyFile, "e", "", "path to a secret used to encrypt the slot")
	fs.StringVar(&o.LogLevel, "l", "info", "log level")
	fs.StringVar(&o.LogFile, "log-file", "", "write logs to a rotated file instead of stderr")
	fs.StringVar(&o.Config, "config", "config.json", "path to config file")
	fs.StringVar(&o.Config, "c", "config.json", "path to config file (shorthand)")
	return fs
}

// Parse parses os.Args and the process environment. It exits the process
// on invalid input.
func Parse() *Options {
	opts, err := ParseArgs(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs := newFlagSet(os.Args[0], &Options{})
			fs.SetOutput(os.Stderr)
			fs.PrintDefaults()
			os.Exit(0)
		}
		log.Fatalf("invalid configuration: %v", err)
	}
	return opts
}

// ParseArgs builds Options from flag defaults, then the config file, then
// flags given explicitly in args, then environment variables looked up via
// getenv.
func ParseArgs(args []string, getenv func(string) string) (*Options, error) {
	opts := &Options{}
	fs := newFlagSet("accountkeeper", opts)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath := getenv("CONFIG"); configPath != "" {
		opts.Config = configPath
	}

	if opts.Config != "" {
		if _, err := os.Stat(opts.Config); err == nil {
			explicit := map[string]string{}
			fs.Visit(func(f *flag.Flag) { explicit[f.Name] = f.Value.String() })

			if err := loadFile(opts.Config, opts); err != nil {
				return nil, err
			}
			// explicit flags win over the file
			for name, value := range explicit {
				_ = fs.Set(name, value)
			}
		}
	}

	for env, dst := range map[string]*string{
		"SERVER_ADDRESS": &opts.Address,
		"STORAGE":        &opts.Storage,
		"STORAGE_PATH":   &opts.StoragePath,
		"DATABASE_DSN":   &opts.DatabaseDSN,
		"LOG_LEVEL":      &opts.LogLevel,
	} {
		if v := getenv(env); v != "" {
			*dst = v
		}
	}

	return opts, opts.validate()
}

func loadFile(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, opts)
	default:
		err = json.Unmarshal(data, opts)
	}
	if err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	return nil
}

func (o *Options) validate() error {
	switch o.Storage {
	case StorageFile, StorageSQLite:
		if o.StoragePath == "" {
			return fmt.Errorf("storage %q requires a storage path", o.Storage)
		}
	case StoragePostgres:
		if o.DatabaseDSN == "" {
			return errors.New("storage \"postgres\" requires a database DSN")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q", o.Storage)
	}
	if o.SlotKey == "" {
		return errors.New("slot key must not be empty")
	}
	return nil
}
