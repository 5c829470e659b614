package model

import "time"

// InstrumentedModule is the cached product of instrumenting one source
// file: generated source text plus its source map. The cache key combines
// the content hash with the instrumentation-config fingerprint, so a
// config change invalidates every cached module.
//
// The derived analysis results are persisted alongside the generated
// text so a disk-cache hit can register with a session without
// re-parsing the original source.
type InstrumentedModule struct {
	Source    *SourceFile `msgpack:"-"`
	Path      Path        `msgpack:"path"`
	Hash      string      `msgpack:"hash"`
	Generated []byte      `msgpack:"generated"`
	Map       SourceMap   `msgpack:"map"`
	CacheKey  string      `msgpack:"cache_key"`
	CreatedAt time.Time   `msgpack:"created_at"`

	MaxLine   int              `msgpack:"max_line"`
	ExecLines []int            `msgpack:"exec_lines"`
	Functions []FunctionRecord `msgpack:"functions"`
}

// RebuildSource reconstructs the SourceFile view from persisted fields,
// used when a module is served from the disk cache.
func (im *InstrumentedModule) RebuildSource(text []byte) *SourceFile {
	lines := make(map[int]struct{}, len(im.ExecLines))
	for _, line := range im.ExecLines {
		lines[line] = struct{}{}
	}
	sf := &SourceFile{
		Path:            im.Path,
		Text:            text,
		Hash:            im.Hash,
		MaxLine:         im.MaxLine,
		ExecutableLines: lines,
		Functions:       im.Functions,
	}
	im.Source = sf
	return sf
}
