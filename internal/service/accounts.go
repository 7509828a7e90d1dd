// Package service provides the account store: the state container that owns
// the account collection, keeps validation results current and writes every
// change through to a durable slot.
package service

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/atinyakov/AccountKeeper/internal/labels"
	"github.com/atinyakov/AccountKeeper/internal/models"
	"github.com/atinyakov/AccountKeeper/internal/persistence"
	"github.com/atinyakov/AccountKeeper/internal/storage"
	"github.com/atinyakov/AccountKeeper/internal/validation"
	"go.uber.org/zap"
)

// Listener receives a snapshot of the collection after each change.
type Listener func(accounts []models.Account)

// ErrIDsExhausted is returned by AddAccount when the highest id in the
// collection is already the largest representable id.
var ErrIDsExhausted = errors.New("account ids exhausted")

type subscription struct {
	id int
	fn Listener
}

// AccountStore holds the live account collection.
//
// Every mutating operation runs to completion under the store lock:
// mutate, re-validate, persist. Listeners run after the lock is released.
// A failed save leaves the in-memory change applied and is returned to the
// caller.
type AccountStore struct {
	mu        sync.Mutex
	slot      storage.Slot
	key       string
	log       *zap.Logger
	accounts  []models.Account
	listeners []subscription
	nextSub   int
}

// NewAccountStore loads the collection stored under key and returns a store
// backed by slot. Loading never fails; see persistence.Load.
func NewAccountStore(ctx context.Context, slot storage.Slot, key string, log *zap.Logger) *AccountStore {
	if log == nil {
		log = zap.NewNop()
	}
	accounts := persistence.Load(ctx, slot, key, log)
	log.Info("accounts loaded", zap.String("key", key), zap.Int("count", len(accounts)))
	return &AccountStore{
		slot:      slot,
		key:       key,
		log:       log,
		accounts:  accounts,
	}
}

// Subscribe registers fn to be called after every change. Listeners run in
// subscription order. The returned function removes the registration.
func (s *AccountStore) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// AddAccount appends a new account with default values. Its id is one more
// than the highest id in the collection, or 1 when the collection is empty.
// If no larger id exists, nothing is added and ErrIDsExhausted is returned.
func (s *AccountStore) AddAccount(ctx context.Context) (models.Account, error) {
	s.mu.Lock()
	id, ok := s.nextID()
	if !ok {
		s.mu.Unlock()
		return models.Account{}, ErrIDsExhausted
	}
	acc := models.NewAccount(id)
	acc.Errors = validation.Validate(acc).Errors
	s.accounts = append(s.accounts, acc)
	created := acc.Clone()
	err := s.commitLocked(ctx, "add", acc.ID)
	s.unlockAndNotify()
	return created, err
}

// RemoveAccount deletes the account with id. Unknown ids are ignored.
func (s *AccountStore) RemoveAccount(ctx context.Context, id int64) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
	err := s.commitLocked(ctx, "remove", id)
	s.unlockAndNotify()
	return err
}

// UpdateAccount merges patch into the account with id and re-validates it.
// Unknown ids are ignored.
//
// An LDAP account never keeps a password: when the patch switches the
// record type to LDAP, or the account already is LDAP, the password is
// cleared and hidden even if the same patch supplied one.
func (s *AccountStore) UpdateAccount(ctx context.Context, id int64, patch models.AccountPatch) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	acc := &s.accounts[i]
	if patch.Labels != nil {
		acc.Labels = labels.Parse(*patch.Labels)
	}
	if patch.RecordType != nil {
		acc.RecordType = *patch.RecordType
	}
	if patch.Login != nil {
		acc.Login = *patch.Login
	}
	if patch.Password != nil {
		acc.Password = *patch.Password
	}
	if patch.ShowPassword != nil {
		acc.ShowPassword = *patch.ShowPassword
	}
	if patch.Touched != nil {
		acc.Touched = make(map[string]bool, len(patch.Touched))
		for k, v := range patch.Touched {
			acc.Touched[k] = v
		}
	}
	if patch.SetsLDAP() || acc.RecordType == models.LDAP {
		acc.Password = ""
		acc.ShowPassword = false
	}
	acc.Errors = validation.Validate(*acc).Errors
	err := s.commitLocked(ctx, "update", id)
	s.unlockAndNotify()
	return err
}

// TogglePasswordVisibility flips ShowPassword on the account with id.
// LDAP accounts have no password, so their ShowPassword stays false.
// Unknown ids are ignored.
func (s *AccountStore) TogglePasswordVisibility(ctx context.Context, id int64) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	acc := &s.accounts[i]
	acc.ShowPassword = !acc.ShowPassword && acc.RecordType != models.LDAP
	acc.Errors = validation.Validate(*acc).Errors
	err := s.commitLocked(ctx, "toggle password visibility", id)
	s.unlockAndNotify()
	return err
}

// Accounts returns a deep copy of the collection in order.
func (s *AccountStore) Accounts() []models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Account returns a copy of the account with id.
func (s *AccountStore) Account(id int64) (models.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.Account{}, false
	}
	return s.accounts[i].Clone(), true
}

// AccountLabels returns the labels of the account with id, or an empty
// slice when there is no such account.
func (s *AccountStore) AccountLabels(id int64) []models.Label {
	acc, ok := s.Account(id)
	if !ok {
		return []models.Label{}
	}
	return acc.Labels
}

// AllLabels concatenates the labels of every account in account order.
func (s *AccountStore) AllLabels() []models.Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	return labels.All(s.accounts)
}

// UniqueLabels lists each distinct label text once, in order of first appearance.
func (s *AccountStore) UniqueLabels() []models.Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	return labels.Unique(s.accounts)
}

// Validate runs the validator against the current values of the account
// with id without writing the result back.
func (s *AccountStore) Validate(id int64) (validation.Result, bool) {
	acc, ok := s.Account(id)
	if !ok {
		return validation.Result{}, false
	}
	return validation.Validate(acc), true
}

func (s *AccountStore) nextID() (int64, bool) {
	var highest int64
	for _, acc := range s.accounts {
		if acc.ID > highest {
			highest = acc.ID
		}
	}
	if highest == math.MaxInt64 {
		return 0, false
	}
	return highest + 1, true
}

func (s *AccountStore) indexOf(id int64) int {
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *AccountStore) snapshotLocked() []models.Account {
	out := make([]models.Account, len(s.accounts))
	for i, acc := range s.accounts {
		out[i] = acc.Clone()
	}
	return out
}

// commitLocked writes the collection through to the slot.
func (s *AccountStore) commitLocked(ctx context.Context, op string, id int64) error {
	if err := persistence.Save(ctx, s.slot, s.key, s.accounts); err != nil {
		s.log.Error("failed to persist accounts",
			zap.String("op", op), zap.Int64("id", id), zap.Error(err))
		return err
	}
	s.log.Debug("accounts persisted",
		zap.String("op", op), zap.Int64("id", id), zap.Int("count", len(s.accounts)))
	return nil
}

// unlockAndNotify releases the lock and hands a fresh snapshot to every
// listener. Listeners may call back into the store.
func (s *AccountStore) unlockAndNotify() {
	snapshot := s.snapshotLocked()
	listeners := make([]Listener, len(s.listeners))
	for i, sub := range s.listeners {
		listeners[i] = sub.fn
	}
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snapshot)
	}
}
