package main

import (
	"context"
	"os"

	"github.com/nlquery/nlquery/internal/cli"
)

var version = "dev"

func main() {
	code := cli.Run(context.Background(), os.Args[1:], cli.Options{
		Version: version,
		Lookup:  os.LookupEnv,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	})
	os.Exit(code)
}
