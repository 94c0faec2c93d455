package mealwizard

import (
	"fmt"
	"io"
	"runtime"

	"github.com/davecgh/go-spew/spew"
)

var dumpConfig = spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true}

// Dump pretty-prints values prefixed with the caller's location. Used for debug runs.
func Dump(v ...any) {
	_, file, line, _ := runtime.Caller(1)
	args := append([]any{fmt.Sprintf("%s:%d:", file, line)}, v...)
	dumpConfig.Dump(args...)
}

// Fdump writes a labelled dump of v to w.
func Fdump(w io.Writer, label string, v any) {
	fmt.Fprintf(w, "== %s\n", label)
	dumpConfig.Fdump(w, v)
}
