package models

const (
	PageMarkerRegex    = `--- PAGE (\d+) ---`
	ReferencesRegex    = `(?i)\nreferences\n`
	BoilerplateRegex   = `(?i)IJID.*?\n`
	BlankLinesRegex    = `\n{3,}`
	SpaceRunRegex      = `[ \t]{2,}`
	ChunkFileSuffix    = "_chunks.json"
	DefaultIndexFile   = "chromem.index"
	DefaultMetaFile    = "metadata.json"
	DefaultCollection  = "chunks"
	DefaultSearchTopK  = 5
	DefaultMaxWords    = 400
	DefaultOverlap     = 50
	DefaultMinChunkLen = 100
)
