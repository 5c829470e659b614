package model

import "hash/fnv"

// Path represents a file system path.
type Path string

// FileID is a session-local integer handle for a registered source file.
// Instrumented code carries it instead of the path so the tracking hot
// path never touches strings.
type FileID int

// NoFileID marks an unregistered file.
const NoFileID FileID = -1

// FileKey derives the FileID for a path. The mapping is deterministic so
// cached instrumented output stays valid across sessions and worker
// processes; collisions are rejected at session registration.
func FileKey(path Path) FileID {
	h := fnv.New32a()
	_, _ = h.Write([]byte(path))
	return FileID(h.Sum32())
}

// SourceFile is one Lua source file together with everything derived
// from it: raw text, content hash, executable-line set and function table.
type SourceFile struct {
	Path    Path
	Text    []byte
	Hash    string
	MaxLine int

	// Derived by analysis; nil until the file has been parsed.
	ExecutableLines map[int]struct{}
	Functions       []FunctionRecord
}

// Executable reports whether line is in the derived executable set.
func (sf *SourceFile) Executable(line int) bool {
	_, ok := sf.ExecutableLines[line]
	return ok
}
