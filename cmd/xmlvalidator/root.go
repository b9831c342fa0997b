package main

import (
	"path/filepath"

	"github.com/agentflare-ai/go-xmlvalidator"
	"github.com/agentflare-ai/go-xmlvalidator/internal/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// newRootCmd builds the command. Arguments are positional only, so flag
// parsing is off and "-h" is just another file name. The pipeline's exit
// code is stored in code.
func newRootCmd(fs afero.Fs, cwd string, log *logger.Logger, code *int) *cobra.Command {
	printer := message.NewPrinter(language.AmericanEnglish)

	cmd := &cobra.Command{
		Use:                "xmlvalidator <input.xml> <input.xsd>",
		Short:              "Validate an XML document against an XSD schema",
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := &xmlvalidator.Pipeline{
				FS:          fs,
				Cwd:         cwd,
				Out:         cmd.OutOrStdout(),
				Printer:     printer,
				Log:         log,
				ProgramName: programName(),
				Version:     displayVersion(version),
			}
			*code = p.Run(args)
			return nil
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	return cmd
}

func programName() string {
	return filepath.Base(executable)
}
