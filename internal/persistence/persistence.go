// Package persistence reads and writes the account collection document
// kept in a durable slot.
//
// The document has the shape {"accounts": [...]}. Older writers also stored
// a top-level "nextId" counter and kept labels as one ";"-separated string;
// both are still accepted on load.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atinyakov/AccountKeeper/internal/labels"
	"github.com/atinyakov/AccountKeeper/internal/models"
	"github.com/atinyakov/AccountKeeper/internal/storage"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultKey is the slot key the collection is stored under.
const DefaultKey = "accounts"

type document struct {
	Accounts []models.Account `json:"accounts"`
}

// storedDocument is the permissive read-side shape. Any "nextId" field is
// ignored: ids are recomputed from the accounts themselves.
type storedDocument struct {
	Accounts []json.RawMessage `json:"accounts"`
}

type storedAccount struct {
	ID           int64             `json:"id"`
	Labels       json.RawMessage   `json:"labels"`
	RecordType   string            `json:"recordType"`
	Login        string            `json:"login"`
	Password     string            `json:"password"`
	ShowPassword bool              `json:"showPassword"`
	Errors       map[string]string `json:"errors"`
	Touched      map[string]bool   `json:"touched"`
}

// Decode parses a stored document into accounts.
//
// Records that cannot be decoded, or whose id is not positive or repeats an
// earlier id, are dropped; the reasons are combined into the returned error.
// The accounts returned are usable even when the error is non-nil. A
// document that is not valid JSON yields no accounts.
func Decode(data string) ([]models.Account, error) {
	var doc storedDocument
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return []models.Account{}, fmt.Errorf("decode document: %w", err)
	}

	accounts := make([]models.Account, 0, len(doc.Accounts))
	seen := make(map[int64]struct{}, len(doc.Accounts))
	var errs error
	for i, raw := range doc.Accounts {
		acc, err := reshape(raw)
		if err == nil {
			if _, dup := seen[acc.ID]; dup {
				err = fmt.Errorf("duplicate id %d", acc.ID)
			}
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		seen[acc.ID] = struct{}{}
		accounts = append(accounts, acc)
	}
	return accounts, errs
}

func reshape(raw json.RawMessage) (models.Account, error) {
	var s storedAccount
	if err := json.Unmarshal(raw, &s); err != nil {
		return models.Account{}, err
	}
	if s.ID <= 0 {
		return models.Account{}, fmt.Errorf("invalid id %d", s.ID)
	}

	acc := models.NewAccount(s.ID)
	acc.Labels = labels.ParseJSON(s.Labels)
	if rt, err := models.ParseRecordType(s.RecordType); err == nil {
		acc.RecordType = rt
	}
	acc.Login = s.Login
	acc.Password = s.Password
	acc.ShowPassword = s.ShowPassword
	if s.Errors != nil {
		acc.Errors = s.Errors
	}
	if s.Touched != nil {
		acc.Touched = s.Touched
	}
	if acc.RecordType == models.LDAP {
		acc.Password = ""
		acc.ShowPassword = false
	}
	return acc, nil
}

// Encode serializes the full collection.
func Encode(accounts []models.Account) (string, error) {
	if accounts == nil {
		accounts = []models.Account{}
	}
	b, err := json.Marshal(document{Accounts: accounts})
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(b), nil
}

// Load reads the collection from slot. It never fails: a missing slot, a
// read error or a malformed document all produce an empty collection, and
// dropped records are logged.
func Load(ctx context.Context, slot storage.Slot, key string, log *zap.Logger) []models.Account {
	data, ok, err := slot.Get(ctx, key)
	if err != nil {
		log.Warn("failed to read account slot", zap.String("key", key), zap.Error(err))
		return []models.Account{}
	}
	if !ok {
		return []models.Account{}
	}

	accounts, err := Decode(data)
	if err != nil {
		log.Warn("dropped malformed account data",
			zap.String("key", key),
			zap.Int("problems", len(multierr.Errors(err))),
			zap.Int("loaded", len(accounts)),
			zap.Error(err),
		)
	}
	return accounts
}

// Save writes the whole collection to slot as one replace.
func Save(ctx context.Context, slot storage.Slot, key string, accounts []models.Account) error {
	data, err := Encode(accounts)
	if err != nil {
		return err
	}
	if err := slot.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save accounts: %w", err)
	}
	return nil
}
