// ABOUTME: Entry point for printauth, the printer pairing credential manager
// ABOUTME: Dispatches serve, init, token and the remote inspection commands

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
            _       _                   _   _
 _ __  _ __(_)_ __ | |_ __ _ _   _| |_| |__
| '_ \| '__| | '_ \| __/ _' | | | | __| '_ \
| |_) | |  | | | | | || (_| | |_| | |_| | | |
| .__/|_|  |_|_| |_|\__\__,_|\__,_|\__|_| |_|
|_|
`

func usage() {
	fmt.Println("Usage: printauth <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                  Pair with the configured printers and keep credentials current")
	fmt.Println("  init                   Create a new config file interactively")
	fmt.Println("  token --name NAME      Issue an API token for an operator")
	fmt.Println("  health                 Check server health")
	fmt.Println("  credentials            List credentials held by a running server")
	fmt.Println("  regenerate HOST        Replace the credential for HOST")
	fmt.Println("  version                Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "token":
		err = runToken(os.Args[2:])
	case "health":
		err = runHealth(ctx)
	case "credentials":
		err = runCredentials(ctx)
	case "regenerate":
		err = runRegenerate(ctx, os.Args[2:])
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
