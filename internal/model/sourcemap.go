package model

// SourceMapEntry maps one instrumented line back to its original location.
type SourceMapEntry struct {
	Instrumented int  `msgpack:"instrumented"`
	File         Path `msgpack:"file"`
	Original     int  `msgpack:"original"`
}

// SourceMap translates positions between instrumented output and the
// original source. Entries are kept ordered by instrumented line and
// each instrumented line resolves to exactly one original location.
type SourceMap struct {
	Entries []SourceMapEntry `msgpack:"entries"`
}

// Add appends a mapping. Instrumented lines must be added in increasing
// order; out-of-order adds are ignored to keep the table monotonic.
func (m *SourceMap) Add(instrumented int, file Path, original int) {
	if n := len(m.Entries); n > 0 && m.Entries[n-1].Instrumented >= instrumented {
		return
	}
	m.Entries = append(m.Entries, SourceMapEntry{
		Instrumented: instrumented,
		File:         file,
		Original:     original,
	})
}

// Resolve returns the original location for an instrumented line.
func (m *SourceMap) Resolve(instrumented int) (Path, int, bool) {
	lo, hi := 0, len(m.Entries)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case m.Entries[mid].Instrumented == instrumented:
			return m.Entries[mid].File, m.Entries[mid].Original, true
		case m.Entries[mid].Instrumented < instrumented:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return "", 0, false
}

// Len returns the number of mapped lines.
func (m *SourceMap) Len() int {
	return len(m.Entries)
}
