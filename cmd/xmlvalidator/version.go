package main

import (
	goversion "github.com/hashicorp/go-version"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

// displayVersion normalises the build version for the banner. A version
// that does not parse is shown as given.
func displayVersion(raw string) string {
	v, err := goversion.NewVersion(raw)
	if err != nil {
		return raw
	}
	return v.String()
}
