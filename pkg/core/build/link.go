package build

import (
	"fmt"
	"strconv"

	"github.com/matzehuels/orcha/pkg/core/timestep"
	"github.com/matzehuels/orcha/pkg/spec"
)

// LinkName is the node name of the in-transit nodes of a link. It is unique
// per (from, to, start).
func LinkName(from, to string, start int) string {
	return fmt.Sprintf("%s>%s@%d", from, to, start)
}

// PortName is the node name of the terminal of a non-merging link.
func PortName(link string) string { return link + "#port" }

// addLink connects from@start with to@end. Gaps longer than one step get
// in-transit nodes. A merging link continues into the target stream; any
// other link ends in a port node nested in the target.
func (b *builder) addLink(i int, l spec.Link) {
	if !l.Start.Valid {
		b.drop(RowLink, i, "start must be numeric")
		return
	}
	start := l.Start.Int()
	end := start + 1
	if l.End.Valid {
		end = l.End.Int()
	}
	if start >= end {
		b.drop(RowLink, i, "start is not before end")
		return
	}
	from := b.g.Node(start, l.From)
	if from == nil {
		b.drop(RowLink, i, "stream "+strconv.Quote(l.From)+" has no node at "+strconv.Itoa(start))
		return
	}

	name := LinkName(l.From, l.To, start)
	attrs := timestep.Attrs{Color: from.Color, Kind: timestep.KindLink}
	last := l.From
	if end-start > 1 {
		for t := start + 1; t < end; t++ {
			b.g.AddNode(t, name, timestep.Unsized, attrs)
		}
		b.g.AddNext(start, l.From, name)
		last = name
	}

	if l.Merge {
		if !b.g.AddNext(end-1, last, l.To) {
			b.log.Debug("merge target missing", "link", name, "to", l.To, "time", end)
		}
		return
	}
	port := PortName(name)
	b.g.AddNode(end, port, timestep.Unsized, attrs)
	if !b.g.AddParent(end, port, l.To) {
		b.log.Debug("port target missing", "link", name, "to", l.To, "time", end)
	}
	b.g.AddNext(end-1, last, port)
}
