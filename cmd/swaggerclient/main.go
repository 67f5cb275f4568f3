package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/swaggerclient/internal/cli"
)

func main() {
	err := cli.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cli.ExitCode(err))
}
