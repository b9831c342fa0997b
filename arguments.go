package xmlvalidator

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		validateInst = validator.New(validator.WithRequiredStructEnabled())
	})
	return validateInst
}

// Arguments are the two files named on the command line.
type Arguments struct {
	XML string `validate:"required,endswith=.xml"`
	XSD string `validate:"required,endswith=.xsd"`
}

// ParseArguments sorts exactly two arguments into the instance and the
// schema by suffix. Suffixes are case-sensitive and ".xsd" is tested first.
func ParseArguments(args []string) (Arguments, error) {
	var a Arguments
	if len(args) != 2 {
		return a, ErrBadArguments
	}
	for _, arg := range args {
		switch {
		case strings.HasSuffix(arg, ".xsd"):
			a.XSD = arg
		case strings.HasSuffix(arg, ".xml"):
			a.XML = arg
		default:
			return a, ErrBadArguments
		}
	}
	if err := validatorInstance().Struct(a); err != nil {
		return a, ErrBadArguments
	}
	return a, nil
}
