// Command given resolves the requested parameters of every call site in a
// program and reports the ones it cannot satisfy.
//
//	given check [paths...]    report unresolved call sites
//	given graph [paths...]    print the resolved graphs
//	given serve               answer resolution requests over gRPC
//	given clean               remove the incremental store
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
)

// errFailed reports that the program has error diagnostics; they have
// already been printed.
var errFailed = errors.New("resolution failed")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts := newOptions(stdout, stderr)
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "given"

	if _, err := parser.ParseArgs(args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, err)
			return 0
		}
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(stderr, "given:", err)
		}
		return 1
	}
	return 0
}
