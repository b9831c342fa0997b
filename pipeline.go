package xmlvalidator

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/agentflare-ai/go-xmlvalidator/internal/logger"
	"github.com/spf13/afero"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	exitOK    = 0
	exitError = 1
)

// Pipeline runs the checks in order and stops at the first failure.
// Zero fields fall back to the OS filesystem, the process working
// directory, stdout, an en-US printer and a silent logger.
type Pipeline struct {
	FS          afero.Fs
	Cwd         string
	Out         io.Writer
	Printer     *message.Printer
	Log         *logger.Logger
	ProgramName string
	Version     string
	Options     []Option
}

func (p *Pipeline) defaults() {
	if p.FS == nil {
		p.FS = afero.NewOsFs()
	}
	if p.Cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			p.Cwd = wd
		}
	}
	if p.Out == nil {
		p.Out = os.Stdout
	}
	if p.Printer == nil {
		p.Printer = message.NewPrinter(language.AmericanEnglish)
	}
	if p.Log == nil {
		p.Log = logger.Nop()
	}
	if p.ProgramName == "" {
		p.ProgramName = "xmlvalidator"
	}
}

// Run checks the files named by args, prints the first failure and
// returns the process exit code.
func (p *Pipeline) Run(args []string) int {
	p.defaults()
	err := p.Check(args)
	if err == nil {
		return exitOK
	}

	if errors.Is(err, ErrBadArguments) {
		p.Printer.Fprintf(p.Out, "XMLValidator - Version %s\n", p.Version)
		if len(args) != 2 {
			p.Printer.Fprintf(p.Out, "Usage : %s <input.xml> <input.xsd>\n", p.ProgramName)
		}
	}
	p.Printer.Fprintf(p.Out, "%s\n", err.Error())
	p.Log.With("error", err.Error()).Debug("validation failed")
	return exitError
}

// Check runs every stage and returns a *StageError for the first one that
// fails.
func (p *Pipeline) Check(args []string) error {
	p.defaults()

	a, err := ParseArguments(args)
	if err != nil {
		return stageErrorf(ErrBadArguments, "ERROR: Wrong parameters entered.")
	}

	xmlFile := Resolve(p.FS, p.Cwd, a.XML)
	xsdFile := Resolve(p.FS, p.Cwd, a.XSD)
	p.Log.WithFields(map[string]any{"xml": xmlFile.Path, "xsd": xsdFile.Path}).Debug("resolved paths")

	for _, f := range []FilePath{xmlFile, xsdFile} {
		if !f.Exists(p.FS) {
			return stageErrorf(ErrFileNotFound, "ERROR: File \"%s\" does not exist", f.Name)
		}
	}

	stages := []struct {
		name  string
		stage error
		check func() Outcome
		msg   string
	}{
		{"precheck xml", ErrNotXML, func() Outcome { return IsXML(p.FS, xmlFile.Path) }, "ERROR: given XML is not a XML: %s"},
		{"precheck xsd", ErrNotXML, func() Outcome { return IsXML(p.FS, xsdFile.Path) }, "ERROR: given XSD is not a XML: %s"},
		{"well-formed xml", ErrNotWellFormed, func() Outcome { return IsWellFormed(p.FS, xmlFile.Path) }, "ERROR: XML not well formed: %s"},
		{"well-formed xsd", ErrNotWellFormed, func() Outcome { return IsWellFormed(p.FS, xsdFile.Path) }, "ERROR: XSD not well formed: %s"},
		{"schema validation", ErrSchemaInvalid, func() Outcome {
			opts := append([]Option{WithLogger(p.Log)}, p.Options...)
			return ValidateAgainstSchema(p.FS, xmlFile.Path, xsdFile.Path, opts...)
		}, "ERROR: XML is not Valid against schema: %s"},
	}
	for _, s := range stages {
		start := time.Now()
		out := s.check()
		p.Log.With("stage", s.name).Timed(start, "stage finished")
		if !out.OK {
			return stageErrorf(s.stage, s.msg, out.Diagnostic)
		}
	}
	return nil
}
