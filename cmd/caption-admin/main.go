// caption-admin is the operator tool for the gating state that must never
// depend on a running server: the bootstrap PIN and the maintenance
// configuration are edited directly in the database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "set-pin":
		err = runSetPin(ctx, os.Args[2:])
	case "disable-pin":
		err = runDisablePin(ctx, os.Args[2:])
	case "maintenance":
		err = runMaintenance(ctx, os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: caption-admin <command> [flags]

Commands:
  set-pin      Set or rotate the bootstrap PIN
  disable-pin  Disable the bootstrap PIN without erasing it
  maintenance  Show, enable, disable, or clear maintenance mode

Run 'caption-admin <command> -h' for command flags.
`)
}
