package main

import (
	"fmt"
	"os"

	"github.com/knmi/adaguc-checker/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCodeOf(err))
	}
}
