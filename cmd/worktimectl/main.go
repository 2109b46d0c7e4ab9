package main

import (
	"fmt"
	"os"

	"github.com/ogurasousui/worktime/internal/cli"
)

func main() {
	if err := cli.NewRootCmd(cli.DialGRPC).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
