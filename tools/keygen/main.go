// Package main writes a new slot encryption key for use with the -e option.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/atinyakov/AccountKeeper/internal/keygen"
)

func main() {
	out := flag.String("o", "slot.key", "path of the key file to create")
	flag.Parse()

	if err := keygen.WriteKeyFile(*out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Key written to %s\n", *out)
}
