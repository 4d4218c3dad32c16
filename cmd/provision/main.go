package main

import (
	"github.com/provisionkit/provision/pkg/cli"
	"github.com/provisionkit/provision/pkg/util/console"
)

func main() {
	cmd, err := cli.NewRootCommand()
	if err != nil {
		console.Fatalf("%s", err)
	}

	if err = cmd.Execute(); err != nil {
		console.Fatalf("%s", err)
	}
}
