// Package models defines the core data structures for form-backed accounts.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field names used as keys of Account.Errors and Account.Touched.
const (
	FieldLabels   = "labels"
	FieldLogin    = "login"
	FieldPassword = "password"
)

// RecordType classifies how an account authenticates.
type RecordType string

const (
	// Local represents a password-based account.
	Local RecordType = "Local"
	// LDAP represents an externally authenticated account without a local password.
	LDAP RecordType = "LDAP"
)

// legacyLocal is the localized spelling older stores wrote for Local.
const legacyLocal = "Локальная"

// ParseRecordType maps a textual record type onto a known value.
func ParseRecordType(s string) (RecordType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", strings.ToLower(legacyLocal):
		return Local, nil
	case "ldap":
		return LDAP, nil
	default:
		return "", fmt.Errorf("unknown record type %q", s)
	}
}

// UnmarshalJSON accepts current and legacy spellings of the record type.
func (r *RecordType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRecordType(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Label is a single free-text tag attached to an account.
type Label struct {
	Text string `json:"text"`
}

// Account is one form-backed credential record.
type Account struct {
	// ID is assigned by the store and unique within the collection.
	ID int64 `json:"id"`
	// Labels keeps insertion order; duplicates are allowed.
	Labels []Label `json:"labels"`
	// RecordType selects between Local and LDAP authentication.
	RecordType RecordType `json:"recordType"`
	// Login is required for every account.
	Login string `json:"login"`
	// Password is empty when absent and always empty for LDAP accounts.
	Password string `json:"password,omitempty"`
	// ShowPassword is a display toggle for collaborators.
	ShowPassword bool `json:"showPassword"`
	// Errors holds the latest validation message per field.
	Errors map[string]string `json:"errors"`
	// Touched records which fields the user has interacted with.
	Touched map[string]bool `json:"touched"`
}

// NewAccount returns an account with default field values.
func NewAccount(id int64) Account {
	return Account{
		ID:         id,
		Labels:     []Label{},
		RecordType: Local,
		Errors:     map[string]string{},
		Touched:    map[string]bool{},
	}
}

// Clone returns a deep copy that shares no slices or maps with a.
func (a Account) Clone() Account {
	c := a
	c.Labels = append([]Label{}, a.Labels...)
	c.Errors = make(map[string]string, len(a.Errors))
	for k, v := range a.Errors {
		c.Errors[k] = v
	}
	c.Touched = make(map[string]bool, len(a.Touched))
	for k, v := range a.Touched {
		c.Touched[k] = v
	}
	return c
}

// AccountPatch carries a partial update. Nil fields are left untouched.
type AccountPatch struct {
	Labels       *[]Label        `json:"labels,omitempty"`
	RecordType   *RecordType     `json:"recordType,omitempty"`
	Login        *string         `json:"login,omitempty"`
	Password     *string         `json:"password,omitempty"`
	ShowPassword *bool           `json:"showPassword,omitempty"`
	Touched      map[string]bool `json:"touched,omitempty"`
}

// SetsLDAP reports whether the patch switches the record type to LDAP.
func (p AccountPatch) SetsLDAP() bool {
	return p.RecordType != nil && *p.RecordType == LDAP
}
