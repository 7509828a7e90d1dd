// Package form implements the terminal form used by the interactive client
// to edit and display accounts.
package form

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/atinyakov/AccountKeeper/internal/labels"
	"github.com/atinyakov/AccountKeeper/internal/models"
)

func ask(scanner *bufio.Scanner, out io.Writer, prompt string) (string, bool) {
	fmt.Fprint(out, prompt)
	if !scanner.Scan() {
		return "", false
	}
	return scanner.Text(), true
}

// PromptPatch asks for new field values of acc. An empty answer keeps the
// current value; "-" clears the labels. Fields the user answered are marked
// as touched. The password is only asked for Local accounts.
func PromptPatch(scanner *bufio.Scanner, out io.Writer, acc models.Account) models.AccountPatch {
	var patch models.AccountPatch
	touched := make(map[string]bool, len(acc.Touched))
	for k, v := range acc.Touched {
		touched[k] = v
	}

	if line, ok := ask(scanner, out, fmt.Sprintf("Labels [%s]: ", labels.Join(acc.Labels))); ok && strings.TrimSpace(line) != "" {
		parsed := []models.Label{}
		if strings.TrimSpace(line) != "-" {
			parsed = labels.Parse(line)
		}
		patch.Labels = &parsed
		touched[models.FieldLabels] = true
	}

	if line, ok := ask(scanner, out, fmt.Sprintf("Login [%s]: ", acc.Login)); ok && line != "" {
		patch.Login = &line
		touched[models.FieldLogin] = true
	}

	if acc.RecordType != models.LDAP {
		if line, ok := ask(scanner, out, "Password (leave empty to keep): "); ok && line != "" {
			patch.Password = &line
			touched[models.FieldPassword] = true
		}
	}

	if len(touched) > 0 {
		patch.Touched = touched
	}
	return patch
}

// Render writes a human-readable view of acc. The password is masked
// unless ShowPassword is set.
func Render(out io.Writer, acc models.Account) {
	password := strings.Repeat("*", len([]rune(acc.Password)))
	if acc.ShowPassword {
		password = acc.Password
	}
	if acc.RecordType == models.LDAP {
		password = "(none)"
	}
	fmt.Fprintf(out, "ID: %d\nType: %s\nLabels: %s\nLogin: %s\nPassword: %s\n",
		acc.ID, acc.RecordType, labels.Join(acc.Labels), acc.Login, password)

	fields := make([]string, 0, len(acc.Errors))
	for f := range acc.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(out, "! %s: %s\n", f, acc.Errors[f])
	}
	fmt.Fprintln(out, "---")
}
