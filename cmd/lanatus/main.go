// Command lanatus manages player melon accounts.
package main

import (
	"context"
	"os"

	"github.com/roach88/lanatus/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
