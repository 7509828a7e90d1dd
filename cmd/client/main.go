// Package main runs the interactive AccountKeeper shell against a local
// account store.
package main

import (
	"cmp"
	"context"
	"fmt"
	"os"

	"github.com/atinyakov/AccountKeeper/internal/app"
	"github.com/atinyakov/AccountKeeper/internal/client/shell"
	"github.com/atinyakov/AccountKeeper/internal/config"
	"github.com/atinyakov/AccountKeeper/internal/models"
	"github.com/atinyakov/AccountKeeper/internal/service"
	"go.uber.org/zap"
)

var (
	version   string
	buildDate string
)

func main() {
	options := config.Parse()

	fmt.Printf("AccountKeeper Client\nVersion: %s\nBuild Date: %s\n",
		cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))

	// Client logs default to a file in the working directory.
	options.LogFile = cmp.Or(options.LogFile, "accountkeeper-client.log")
	log, err := app.NewLogger(options)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Log.Sync() }()

	slot, closeSlot, err := app.OpenSlot(options, log.Log)
	if err != nil {
		log.Log.Error("cannot open storage", zap.Error(err))
		fmt.Fprintf(os.Stderr, "cannot open storage: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = closeSlot() }()

	ctx := context.Background()
	store := service.NewAccountStore(ctx, slot, options.SlotKey, log.Log)
	unsubscribe := store.Subscribe(func(accounts []models.Account) {
		log.Log.Debug("accounts changed", zap.Int("count", len(accounts)))
	})
	defer unsubscribe()

	shell.Run(ctx, os.Stdin, os.Stdout, store)
}
