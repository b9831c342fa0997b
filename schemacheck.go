package xmlvalidator

import (
	"fmt"

	"github.com/agentflare-ai/go-xmldom"
	"github.com/agentflare-ai/go-xmlvalidator/internal/logger"
	"github.com/agentflare-ai/go-xmlvalidator/internal/xsd"
	"github.com/spf13/afero"
)

type schemaOptions struct {
	namespace string
	log       *logger.Logger
}

// Option configures ValidateAgainstSchema.
type Option func(*schemaOptions)

// WithNamespace adds the schema under namespace instead of its own
// targetNamespace. A schema without a targetNamespace adopts it.
func WithNamespace(namespace string) Option {
	return func(o *schemaOptions) {
		o.namespace = namespace
	}
}

// WithLogger sets the logger that receives schema warnings and the full
// list of violations.
func WithLogger(log *logger.Logger) Option {
	return func(o *schemaOptions) {
		o.log = log
	}
}

// ValidateAgainstSchema validates the document at xmlPath against the
// schema at xsdPath. A schema that fails to compile is reported and the
// document is still validated against whatever compiled, so both problems
// can appear in the diagnostic.
func ValidateAgainstSchema(fs afero.Fs, xmlPath, xsdPath string, opts ...Option) Outcome {
	o := schemaOptions{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	f, err := fs.Open(xmlPath)
	if err != nil {
		return failure(err.Error())
	}
	defer f.Close()
	doc, err := decodeDocument(f)
	if err != nil {
		return failure(err.Error())
	}

	out := success()
	set := xsd.NewSchemaSet(fs)
	if err := addSchema(set, o.namespace, xsdPath); err != nil {
		out.fail(err.Error())
	}
	for _, w := range set.Warnings() {
		o.log.With("schema", xsdPath).Warn(w.Error())
	}

	violations, err := validate(set, doc)
	if err != nil {
		out.fail(err.Error())
		return out
	}
	if len(violations) > 0 {
		out.fail(violations[0].Error())
	}
	for _, d := range xsd.Diagnostics(xmlPath, violations) {
		o.log.WithFields(d.Fields()).Debug(d.Message)
	}
	return out
}

func validate(set *xsd.SchemaSet, doc xmldom.Document) (violations []xsd.Violation, err error) {
	defer func() {
		if r := recover(); r != nil {
			violations, err = nil, fmt.Errorf("%v", r)
		}
	}()
	return xsd.NewValidator(set).Validate(doc), nil
}

func addSchema(set *xsd.SchemaSet, namespace, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return set.Add(namespace, path)
}
