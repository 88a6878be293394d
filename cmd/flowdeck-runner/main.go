package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "flowdeck-runner",
		Usage:                 "Compile and execute workflow graphs",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewRunCommand(),
			NewValidateCommand(),
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
