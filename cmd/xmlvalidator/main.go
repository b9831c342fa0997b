package main

import (
	"fmt"
	"os"

	"github.com/agentflare-ai/go-xmlvalidator/internal/logger"
	"github.com/spf13/afero"
)

var executable = os.Args[0]

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	log, err := logger.New(logger.Options{Level: "warn", HumanReadable: true, Writer: os.Stderr})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}

	cwd, err := os.Getwd()
	if err != nil {
		log.Error(err, "cannot determine working directory")
		return 1
	}

	code := 1
	root := newRootCmd(afero.NewOsFs(), cwd, log, &code)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stdout, err)
		return 1
	}
	return code
}
