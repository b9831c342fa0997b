package xmlvalidator

import "strings"

// Outcome is the result of one check. Diagnostic accumulates an
// "Exception:" block per failure and is never empty when OK is false.
type Outcome struct {
	OK         bool
	Diagnostic string
}

func success() Outcome {
	return Outcome{OK: true}
}

func failure(msg string) Outcome {
	var o Outcome
	o.fail(msg)
	return o
}

// fail marks the outcome failed and appends msg as an exception block.
func (o *Outcome) fail(msg string) {
	o.OK = false
	if strings.TrimSpace(msg) == "" {
		msg = "Unknown error."
	}
	o.Diagnostic += "\nException:\n" + msg
}
