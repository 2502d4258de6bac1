package sierra

import "sort"

// FunctionRange is the [Start, End) statement slice a function owns.
type FunctionRange struct {
	Fn         *Function
	Start, End Offset
}

// SplitFunctions partitions the program's flat statement list into
// per-function ranges using header entry offsets: a function's range runs
// from its Entry to the next function's Entry (by ascending Entry order),
// or to the end of the statement list for the last one.
func (p *Program) SplitFunctions() []FunctionRange {
	fns := make([]*Function, len(p.Functions))
	copy(fns, p.Functions)
	sort.Slice(fns, func(i, j int) bool { return fns[i].Entry < fns[j].Entry })

	ranges := make([]FunctionRange, len(fns))
	for i, fn := range fns {
		end := Offset(len(p.Statements))
		if i+1 < len(fns) {
			end = fns[i+1].Entry
		}
		ranges[i] = FunctionRange{Fn: fn, Start: fn.Entry, End: end}
	}
	return ranges
}
