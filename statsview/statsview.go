// Package statsview starts a live browser dashboard of Go runtime metrics
// for long-running onerom validate sessions, the way a debugger session
// offers an optional stats server instead of always paying for one.
package statsview

import (
	"fmt"
	"io"

	gostatsview "github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

// Address is where the dashboard listens once Launch has been called.
const Address = ":18066"

// Available reports whether the statsview dashboard can be offered on
// this build. It exists so callers can skip registering the --live flag
// entirely on builds where it would never work, matching how other
// optional features in this tree gate themselves.
func Available() bool {
	return true
}

// Launch starts the statsview HTTP server in the background and writes
// the address it is listening on to out. It does not block: validate
// keeps running its checks while the dashboard serves requests.
func Launch(out io.Writer) {
	viewer.SetConfiguration(viewer.WithAddr(Address), viewer.WithTheme(viewer.ThemeWesteros))
	mgr := gostatsview.New()
	go mgr.Start()
	fmt.Fprintf(out, "stats dashboard listening on http://127.0.0.1%s\n", Address)
}
