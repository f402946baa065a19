package compose

import (
	"os"

	"github.com/bradleyjkemp/memviz"

	"github.com/sweproj/onerom/cartridgeloader"
	"github.com/sweproj/onerom/errors"
	"github.com/sweproj/onerom/hardware"
	"github.com/sweproj/onerom/romset"
)

// debugGraph is a snapshot of one composition's layout, built purely to
// give memviz.Map something to walk; it is never serialized to the image.
type debugGraph struct {
	PinMap hardware.PinMap
	Sets   []cartridgeloader.ResolvedSet
	Built  []romset.Built
	Layout layout
}

// WriteDebugGraph composes fw/pm/sets as Compose would, and additionally
// dumps a Graphviz .dot rendering of the resulting layout to path, for
// the --debug-graph flag on the compose subcommand.
func WriteDebugGraph(path string, fw []byte, pm hardware.PinMap, sets []cartridgeloader.ResolvedSet) error {
	built := make([]romset.Built, len(sets))
	for i, s := range sets {
		b, err := romset.Build(pm, s)
		if err != nil {
			return errors.Wrap(errors.LayoutError, err, "building ROM set %d", i)
		}
		built[i] = b
	}

	l, err := planLayout(fw, sets, built)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.SourceError, err, "creating %s", path)
	}
	defer f.Close()

	memviz.Map(f, &debugGraph{PinMap: pm, Sets: sets, Built: built, Layout: l})
	return nil
}
