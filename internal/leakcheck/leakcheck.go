// Package leakcheck centralizes the goleak options packages use in
// their TestMain, so that known-benign background goroutines (HTTP
// keep-alive connections, the like) don't fail every test binary that
// happens to exercise the network stack.
package leakcheck

import "go.uber.org/goleak"

var ignoreFuncs = []string{
	"internal/poll.runtime_pollWait",
	"net/http.(*persistConn).writeLoop",
	"net/http.(*persistConn).readLoop",
}

// Defaults is the goleak option set every TestMain should pass to
// goleak.VerifyTestMain.
var Defaults = initOpts()

func initOpts() []goleak.Option {
	options := make([]goleak.Option, 0, len(ignoreFuncs)+1)
	for _, f := range ignoreFuncs {
		options = append(options, goleak.IgnoreTopFunction(f))
	}
	options = append(options, goleak.IgnoreCurrent())
	return options
}
