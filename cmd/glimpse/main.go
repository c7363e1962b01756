// Command glimpse serves the Glimpse playground and API reference, and
// runs code against the remote runner from the command line.
//
//	glimpse serve              start the web front-end
//	glimpse run script.py      run a file
//	glimpse run -c 'print(1)'  run inline code
//	glimpse languages          list supported languages
//
// Configuration is read from --config, GLIMPSE_CONFIG, ./config.yaml or
// /etc/glimpse/config.yaml, then overridden by GLIMPSE_* variables.
package main

import (
	"errors"
	"fmt"
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exit *exitError
		if !errors.As(err, &exit) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// exitError signals a failure that has already been reported to the user.
type exitError struct{}

func (*exitError) Error() string { return "exit status 1" }
