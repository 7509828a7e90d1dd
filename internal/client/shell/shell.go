// Package shell implements the interactive command loop of the client.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/atinyakov/AccountKeeper/internal/client/form"
	"github.com/atinyakov/AccountKeeper/internal/labels"
	"github.com/atinyakov/AccountKeeper/internal/models"
)

// Store is the subset of the account store used by the shell.
type Store interface {
	AddAccount(ctx context.Context) (models.Account, error)
	RemoveAccount(ctx context.Context, id int64) error
	UpdateAccount(ctx context.Context, id int64, patch models.AccountPatch) error
	TogglePasswordVisibility(ctx context.Context, id int64) error
	Accounts() []models.Account
	Account(id int64) (models.Account, bool)
	AllLabels() []models.Label
	UniqueLabels() []models.Label
}

const helpText = "Available commands: help, add, list, show <id>, edit <id>, ldap <id>, local <id>, toggle <id>, delete <id>, labels [unique], exit"

// Run reads commands from in until "exit" or end of input.
func Run(ctx context.Context, in io.Reader, out io.Writer, store Store) {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "accountkeeper> ")
		if !scanner.Scan() {
			break
		}
		args := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "help":
			fmt.Fprintln(out, helpText)
		case "add":
			acc, err := store.AddAccount(ctx)
			if acc.ID == 0 {
				fmt.Fprintf(out, "Cannot add account: %v\n", err)
				continue
			}
			report(out, err)
			form.Render(out, acc)
		case "list":
			accounts := store.Accounts()
			if len(accounts) == 0 {
				fmt.Fprintln(out, "No accounts")
			}
			for _, acc := range accounts {
				form.Render(out, acc)
			}
		case "labels":
			list := store.AllLabels()
			if len(args) > 1 && args[1] == "unique" {
				list = store.UniqueLabels()
			}
			fmt.Fprintln(out, labels.Join(list))
		case "exit":
			fmt.Fprintln(out, "Bye")
			return
		case "show", "edit", "ldap", "local", "toggle", "delete":
			withAccount(ctx, scanner, out, store, args)
		default:
			fmt.Fprintln(out, "Unknown command. Type 'help' for a list of commands.")
		}
	}
}

func withAccount(ctx context.Context, scanner *bufio.Scanner, out io.Writer, store Store, args []string) {
	if len(args) < 2 {
		fmt.Fprintf(out, "Usage: %s <id>\n", args[0])
		return
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		fmt.Fprintln(out, "Invalid id")
		return
	}
	acc, ok := store.Account(id)
	if !ok {
		fmt.Fprintln(out, "Account not found")
		return
	}

	switch args[0] {
	case "show":
		form.Render(out, acc)
		return
	case "edit":
		err = store.UpdateAccount(ctx, id, form.PromptPatch(scanner, out, acc))
	case "ldap", "local":
		rt := models.LDAP
		if args[0] == "local" {
			rt = models.Local
		}
		err = store.UpdateAccount(ctx, id, models.AccountPatch{RecordType: &rt})
	case "toggle":
		err = store.TogglePasswordVisibility(ctx, id)
	case "delete":
		if err := store.RemoveAccount(ctx, id); err != nil {
			report(out, err)
			return
		}
		fmt.Fprintln(out, "Account deleted")
		return
	}

	report(out, err)
	if updated, ok := store.Account(id); ok {
		form.Render(out, updated)
	}
}

func report(out io.Writer, err error) {
	if err != nil {
		fmt.Fprintf(out, "Warning: changes not saved: %v\n", err)
	}
}
