// Package validation checks account field values against the form constraints.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/atinyakov/AccountKeeper/internal/labels"
	"github.com/atinyakov/AccountKeeper/internal/models"
)

// Limits applied to account fields.
const (
	MaxLabelsLength = 200
	MaxLabels       = 10
	MaxLabelLength  = 50
	MaxLoginLength  = 100
	MaxPasswordLen  = 100
)

// Messages reported by Validate.
var (
	MsgLabelsTooLong    = fmt.Sprintf("max %d characters across all labels", MaxLabelsLength)
	MsgTooManyLabels    = fmt.Sprintf("max %d labels", MaxLabels)
	MsgLabelTooLong     = fmt.Sprintf("each label at most %d characters", MaxLabelLength)
	MsgLoginRequired    = "login required"
	MsgPasswordRequired = "password required"
	MsgTooLong          = fmt.Sprintf("max %d characters", MaxLoginLength)
)

// Result is the outcome of validating one account.
type Result struct {
	Errors  map[string]string `json:"errors"`
	IsValid bool              `json:"isValid"`
}

// Validator collects at most one message per field. Once a field has
// failed, later rules for the same field are skipped, so the order in which
// rules are chained decides which message wins.
type Validator struct {
	errors map[string]string
}

// NewValidator creates a validator with no errors.
func NewValidator() *Validator {
	return &Validator{errors: make(map[string]string)}
}

// Check records msg for field when failed is true and the field has no error yet.
func (v *Validator) Check(field string, failed bool, msg string) *Validator {
	if !failed {
		return v
	}
	if _, ok := v.errors[field]; !ok {
		v.errors[field] = msg
	}
	return v
}

// Required fails when value is blank after trimming.
func (v *Validator) Required(field, value, msg string) *Validator {
	return v.Check(field, strings.TrimSpace(value) == "", msg)
}

// MaxLength fails when value has more than max characters.
func (v *Validator) MaxLength(field, value string, max int, msg string) *Validator {
	return v.Check(field, utf8.RuneCountInString(value) > max, msg)
}

// HasErrors reports whether any rule failed.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Result returns a copy of the collected errors and the overall verdict.
func (v *Validator) Result() Result {
	errs := make(map[string]string, len(v.errors))
	for k, msg := range v.errors {
		errs[k] = msg
	}
	return Result{Errors: errs, IsValid: !v.HasErrors()}
}

// Validate computes the field errors of acc. It never modifies acc.
func Validate(acc models.Account) Result {
	v := NewValidator()

	v.MaxLength(models.FieldLabels, labels.Join(acc.Labels), MaxLabelsLength, MsgLabelsTooLong).
		Check(models.FieldLabels, len(acc.Labels) > MaxLabels, MsgTooManyLabels)
	for _, l := range acc.Labels {
		if utf8.RuneCountInString(l.Text) > MaxLabelLength {
			v.Check(models.FieldLabels, true, MsgLabelTooLong)
			break
		}
	}

	v.Required(models.FieldLogin, acc.Login, MsgLoginRequired).
		MaxLength(models.FieldLogin, acc.Login, MaxLoginLength, MsgTooLong)

	if acc.RecordType != models.LDAP {
		v.Required(models.FieldPassword, acc.Password, MsgPasswordRequired).
			MaxLength(models.FieldPassword, acc.Password, MaxPasswordLen, MsgTooLong)
	}

	return v.Result()
}
