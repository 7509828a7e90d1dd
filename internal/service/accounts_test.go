package service_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/atinyakov/AccountKeeper/internal/models"
	"github.com/atinyakov/AccountKeeper/internal/persistence"
	"github.com/atinyakov/AccountKeeper/internal/service"
	"github.com/atinyakov/AccountKeeper/internal/storage"
	"github.com/atinyakov/AccountKeeper/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// flakySlot wraps a MemorySlot and fails writes while failing is set.
type flakySlot struct {
	*storage.MemorySlot
	failing bool
	writes  int
}

func (f *flakySlot) Set(ctx context.Context, key, value string) error {
	f.writes++
	if f.failing {
		return errors.New("quota exceeded")
	}
	return f.MemorySlot.Set(ctx, key, value)
}

func newStore(t *testing.T) (*service.AccountStore, *flakySlot) {
	t.Helper()
	slot := &flakySlot{MemorySlot: storage.NewMemorySlot()}
	return service.NewAccountStore(context.Background(), slot, persistence.DefaultKey, zap.NewNop()), slot
}

func ptr[T any](v T) *T { return &v }

// persisted decodes what the slot currently holds.
func persisted(t *testing.T, slot storage.Slot) []models.Account {
	t.Helper()
	raw, ok, err := slot.Get(context.Background(), persistence.DefaultKey)
	require.NoError(t, err)
	require.True(t, ok, "slot is empty")
	accounts, err := persistence.Decode(raw)
	require.NoError(t, err)
	return accounts
}

// assertFreshErrors checks that every account carries the errors a fresh
// validation run would produce.
func assertFreshErrors(t *testing.T, store *service.AccountStore) {
	t.Helper()
	for _, acc := range store.Accounts() {
		assert.Equal(t, validation.Validate(acc).Errors, acc.Errors, "account %d", acc.ID)
	}
}

func TestAddAccount_Defaults(t *testing.T) {
	store, slot := newStore(t)
	ctx := context.Background()

	acc, err := store.AddAccount(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), acc.ID)
	assert.Equal(t, models.Local, acc.RecordType)
	assert.Empty(t, acc.Login)
	assert.Empty(t, acc.Password)
	assert.Empty(t, acc.Labels)
	assert.False(t, acc.ShowPassword)
	assert.Equal(t, map[string]string{
		models.FieldLogin:    validation.MsgLoginRequired,
		models.FieldPassword: validation.MsgPasswordRequired,
	}, acc.Errors)

	assert.Equal(t, store.Accounts(), persisted(t, slot))
}

func TestAddAccount_IDs(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	a, err := store.AddAccount(ctx)
	require.NoError(t, err)
	b, err := store.AddAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)

	require.NoError(t, store.RemoveAccount(ctx, b.ID))
	c, err := store.AddAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.ID, "id is max+1 over survivors")

	require.NoError(t, store.RemoveAccount(ctx, a.ID))
	d, err := store.AddAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), d.ID, "lower freed ids are not reused")
}

func TestRemoveAccount(t *testing.T) {
	store, slot := newStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := store.AddAccount(ctx)
		require.NoError(t, err)
	}

	require.NoError(t, store.RemoveAccount(ctx, 2))
	ids := []int64{}
	for _, acc := range store.Accounts() {
		ids = append(ids, acc.ID)
	}
	assert.Equal(t, []int64{1, 3}, ids)
	assert.Len(t, persisted(t, slot), 2)

	writes := slot.writes
	require.NoError(t, store.RemoveAccount(ctx, 99))
	assert.Equal(t, writes, slot.writes, "missing id must not persist")
}

func TestUpdateAccount_ValidatesAndPersists(t *testing.T) {
	store, slot := newStore(t)
	ctx := context.Background()
	_, err := store.AddAccount(ctx)
	require.NoError(t, err)

	require.NoError(t, store.UpdateAccount(ctx, 1, models.AccountPatch{
		Login:    ptr("bob"),
		Password: ptr("x"),
	}))

	acc, ok := store.Account(1)
	require.True(t, ok)
	assert.Empty(t, acc.Errors)
	res, ok := store.Validate(1)
	require.True(t, ok)
	assert.True(t, res.IsValid)

	assert.Equal(t, store.Accounts(), persisted(t, slot))
}

func TestUpdateAccount_SwitchToLDAP(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	_, err := store.AddAccount(ctx)
	require.NoError(t, err)
	require.NoError(t, store.UpdateAccount(ctx, 1, models.AccountPatch{Password: ptr(strings.Repeat("p", 101))}))
	require.NoError(t, store.TogglePasswordVisibility(ctx, 1))

	acc, _ := store.Account(1)
	require.Equal(t, validation.MsgTooLong, acc.Errors[models.FieldPassword])
	require.True(t, acc.ShowPassword)

	require.NoError(t, store.UpdateAccount(ctx, 1, models.AccountPatch{
		RecordType: ptr(models.LDAP),
		Password:   ptr("ignored"),
	}))

	acc, _ = store.Account(1)
	assert.Equal(t, models.LDAP, acc.RecordType)
	assert.Empty(t, acc.Password)
	assert.False(t, acc.ShowPassword)
	assert.NotContains(t, acc.Errors, models.FieldPassword)
	assertFreshErrors(t, store)
}

func TestUpdateAccount_LDAPNeverKeepsPassword(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	_, err := store.AddAccount(ctx)
	require.NoError(t, err)
	require.NoError(t, store.UpdateAccount(ctx, 1, models.AccountPatch{RecordType: ptr(models.LDAP)}))

	require.NoError(t, store.UpdateAccount(ctx, 1, models.AccountPatch{
		Password:     ptr("sneaky"),
		ShowPassword: ptr(true),
	}))

	acc, _ := store.Account(1)
	assert.Empty(t, acc.Password)
	assert.False(t, acc.ShowPassword)
}

func TestUpdateAccount_BackToLocalRequiresPassword(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	_, err := store.AddAccount(ctx)
	require.NoError(t, err)
	require.NoError(t, store.UpdateAccount(ctx, 1, models.AccountPatch{Login: ptr("bob"), Password: ptr("pw")}))
	require.NoError(t, store.UpdateAccount(ctx, 1, models.AccountPatch{RecordType: ptr(models.LDAP)}))
	require.NoError(t, store.UpdateAccount(ctx, 1, models.AccountPatch{RecordType: ptr(models.Local)}))

	acc, _ := store.Account(1)
	assert.Empty(t, acc.Password, "password is not restored")
	assert.Equal(t, validation.MsgPasswordRequired, acc.Errors[models.FieldPassword])
}

func TestUpdateAccount_LabelsAndTouched(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	_, err := store.AddAccount(ctx)
	require.NoError(t, err)
	_, err = store.AddAccount(ctx)
	require.NoError(t, err)

	require.NoError(t, store.UpdateAccount(ctx, 1, models.AccountPatch{
		Labels:  &[]models.Label{{Text: " work "}, {Text: ""}, {Text: "vpn"}},
		Touched: map[string]bool{models.FieldLabels: true},
	}))
	require.NoError(t, store.UpdateAccount(ctx, 2, models.AccountPatch{
		Labels: &[]models.Label{{Text: "vpn"}, {Text: "home"}},
	}))

	assert.Equal(t, []models.Label{{Text: "work"}, {Text: "vpn"}}, store.AccountLabels(1))
	assert.Empty(t, store.AccountLabels(42))
	assert.Equal(t, []models.Label{{Text: "work"}, {Text: "vpn"}, {Text: "vpn"}, {Text: "home"}}, store.AllLabels())
	assert.Equal(t, []models.Label{{Text: "work"}, {Text: "vpn"}, {Text: "home"}}, store.UniqueLabels())

	acc, _ := store.Account(1)
	assert.True(t, acc.Touched[models.FieldLabels])
}

func TestUpdateAccount_LabelLimits(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	_, err := store.AddAccount(ctx)
	require.NoError(t, err)

	eleven := make([]models.Label, 11)
	for i := range eleven {
		eleven[i] = models.Label{Text: "x"}
	}
	require.NoError(t, store.UpdateAccount(ctx, 1, models.AccountPatch{Labels: &eleven}))
	acc, _ := store.Account(1)
	assert.Equal(t, validation.MsgTooManyLabels, acc.Errors[models.FieldLabels])

	require.NoError(t, store.UpdateAccount(ctx, 1, models.AccountPatch{Labels: &[]models.Label{{Text: "ok"}}}))
	acc, _ = store.Account(1)
	assert.NotContains(t, acc.Errors, models.FieldLabels)
}

func TestMissingIDsAreNoOps(t *testing.T) {
	store, slot := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpdateAccount(ctx, 7, models.AccountPatch{Login: ptr("x")}))
	require.NoError(t, store.TogglePasswordVisibility(ctx, 7))
	require.NoError(t, store.RemoveAccount(ctx, 7))

	assert.Empty(t, store.Accounts())
	assert.Zero(t, slot.writes)
	_, ok := store.Validate(7)
	assert.False(t, ok)
}

func TestTogglePasswordVisibility(t *testing.T) {
	store, slot := newStore(t)
	ctx := context.Background()
	_, err := store.AddAccount(ctx)
	require.NoError(t, err)

	require.NoError(t, store.TogglePasswordVisibility(ctx, 1))
	acc, _ := store.Account(1)
	assert.True(t, acc.ShowPassword)
	assert.True(t, persisted(t, slot)[0].ShowPassword)

	require.NoError(t, store.TogglePasswordVisibility(ctx, 1))
	acc, _ = store.Account(1)
	assert.False(t, acc.ShowPassword)
}

func TestTogglePasswordVisibility_LDAPStaysHidden(t *testing.T) {
	store, slot := newStore(t)
	ctx := context.Background()
	_, err := store.AddAccount(ctx)
	require.NoError(t, err)
	require.NoError(t, store.UpdateAccount(ctx, 1, models.AccountPatch{RecordType: ptr(models.LDAP)}))

	for i := 0; i < 2; i++ {
		require.NoError(t, store.TogglePasswordVisibility(ctx, 1))
		acc, _ := store.Account(1)
		assert.False(t, acc.ShowPassword, "toggle %d", i+1)
		assert.False(t, persisted(t, slot)[0].ShowPassword, "toggle %d", i+1)
	}

	require.NoError(t, store.UpdateAccount(ctx, 1, models.AccountPatch{RecordType: ptr(models.Local)}))
	require.NoError(t, store.TogglePasswordVisibility(ctx, 1))
	acc, _ := store.Account(1)
	assert.True(t, acc.ShowPassword, "local accounts toggle again")
}

func TestWriteFailure_KeepsMemoryAndReturnsError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	slot := &flakySlot{MemorySlot: storage.NewMemorySlot()}
	store := service.NewAccountStore(context.Background(), slot, persistence.DefaultKey, zap.New(core))
	ctx := context.Background()

	_, err := store.AddAccount(ctx)
	require.NoError(t, err)

	slot.failing = true
	err = store.UpdateAccount(ctx, 1, models.AccountPatch{Login: ptr("bob")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	acc, _ := store.Account(1)
	assert.Equal(t, "bob", acc.Login, "in-memory mutation stays applied")
	assert.Empty(t, persisted(t, slot)[0].Login, "storage diverges until the next save")
	assert.Equal(t, 1, logs.FilterMessage("failed to persist accounts").Len())

	slot.failing = false
	require.NoError(t, store.TogglePasswordVisibility(ctx, 1))
	assert.Equal(t, "bob", persisted(t, slot)[0].Login)
}

func TestNewAccountStore_LoadsExisting(t *testing.T) {
	slot := storage.NewMemorySlot()
	ctx := context.Background()
	require.NoError(t, slot.Set(ctx, persistence.DefaultKey,
		`{"nextId":10,"accounts":[{"id":4,"labels":"a;b","recordType":"LDAP","login":"ann"}]}`))

	store := service.NewAccountStore(ctx, slot, persistence.DefaultKey, nil)
	require.Len(t, store.Accounts(), 1)
	assert.Equal(t, []models.Label{{Text: "a"}, {Text: "b"}}, store.AccountLabels(4))

	acc, err := store.AddAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), acc.ID, "ids come from data, not nextId")
}

func TestAddAccount_IDsExhausted(t *testing.T) {
	ctx := context.Background()
	slot := &flakySlot{MemorySlot: storage.NewMemorySlot()}
	require.NoError(t, slot.MemorySlot.Set(ctx, persistence.DefaultKey,
		`{"accounts":[{"id":9223372036854775807,"recordType":"Local","login":"last"}]}`))
	store := service.NewAccountStore(ctx, slot, persistence.DefaultKey, zap.NewNop())
	require.Len(t, store.Accounts(), 1)

	acc, err := store.AddAccount(ctx)
	require.ErrorIs(t, err, service.ErrIDsExhausted)
	assert.Zero(t, acc.ID)
	assert.Len(t, store.Accounts(), 1)
	assert.Zero(t, slot.writes, "nothing is persisted")

	require.NoError(t, store.RemoveAccount(ctx, math.MaxInt64))
	acc, err = store.AddAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), acc.ID)
}

func TestAccounts_ReturnsCopies(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	_, err := store.AddAccount(ctx)
	require.NoError(t, err)

	snap := store.Accounts()
	snap[0].Login = "mutated"
	snap[0].Errors[models.FieldLogin] = "changed"

	acc, _ := store.Account(1)
	assert.Empty(t, acc.Login)
	assert.Equal(t, validation.MsgLoginRequired, acc.Errors[models.FieldLogin])
}

func TestSubscribe(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	var seen [][]models.Account
	unsubscribe := store.Subscribe(func(accounts []models.Account) {
		seen = append(seen, accounts)
		// listeners may read back into the store
		_ = store.UniqueLabels()
	})

	_, err := store.AddAccount(ctx)
	require.NoError(t, err)
	require.NoError(t, store.UpdateAccount(ctx, 1, models.AccountPatch{Login: ptr("bob")}))
	require.NoError(t, store.UpdateAccount(ctx, 99, models.AccountPatch{Login: ptr("nobody")}))

	require.Len(t, seen, 2)
	assert.Len(t, seen[0], 1)
	assert.Equal(t, "bob", seen[1][0].Login)

	unsubscribe()
	require.NoError(t, store.TogglePasswordVisibility(ctx, 1))
	assert.Len(t, seen, 2)
}

func TestSubscribe_NotifiesInSubscriptionOrder(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	var order []string
	listen := func(name string) service.Listener {
		return func([]models.Account) { order = append(order, name) }
	}
	store.Subscribe(listen("first"))
	unsubscribe := store.Subscribe(listen("second"))
	store.Subscribe(listen("third"))
	store.Subscribe(listen("fourth"))

	for i := 0; i < 5; i++ {
		order = nil
		_, err := store.AddAccount(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second", "third", "fourth"}, order)
	}

	unsubscribe()
	order = nil
	require.NoError(t, store.RemoveAccount(ctx, 1))
	assert.Equal(t, []string{"first", "third", "fourth"}, order)

	unsubscribe()
	order = nil
	require.NoError(t, store.RemoveAccount(ctx, 2))
	assert.Equal(t, []string{"first", "third", "fourth"}, order, "second unsubscribe is a no-op")
}

func TestErrorsNeverStale(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	steps := []func() error{
		func() error { _, err := store.AddAccount(ctx); return err },
		func() error { _, err := store.AddAccount(ctx); return err },
		func() error { return store.UpdateAccount(ctx, 1, models.AccountPatch{Login: ptr("  ")}) },
		func() error {
			return store.UpdateAccount(ctx, 2, models.AccountPatch{Login: ptr("ann"), Password: ptr("pw")})
		},
		func() error { return store.UpdateAccount(ctx, 2, models.AccountPatch{RecordType: ptr(models.LDAP)}) },
		func() error { return store.TogglePasswordVisibility(ctx, 2) },
		func() error { return store.TogglePasswordVisibility(ctx, 1) },
		func() error {
			return store.UpdateAccount(ctx, 1, models.AccountPatch{Login: ptr(strings.Repeat("l", 101))})
		},
		func() error { return store.RemoveAccount(ctx, 2) },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		assertFreshErrors(t, store)
		for _, acc := range store.Accounts() {
			if acc.RecordType == models.LDAP {
				assert.Empty(t, acc.Password)
				assert.False(t, acc.ShowPassword)
			}
		}
	}
}
