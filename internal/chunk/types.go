package chunk

import "context"

// Line-based chunk sizing. The core measures chunk_size/chunk_overlap in
// source lines, not estimated tokens: a declaration spanning more than
// 3*chunk_size lines is split into windows of chunk_size lines with
// chunk_overlap lines of overlap between consecutive windows.
const (
	DefaultChunkSizeLines    = 75
	DefaultChunkOverlapLines = 10
	OversizeMultiplier       = 3
)

// Type is the coarse chunk classification carried in the data model.
type Type string

const (
	TypeFunction Type = "function"
	TypeClass    Type = "class"
	TypeBlock    Type = "block"
	TypeTemplate Type = "template"
)

// SymbolType further classifies what a chunk's symbol_name refers to.
type SymbolType string

const (
	SymbolFunction   SymbolType = "function"
	SymbolMethod     SymbolType = "method"
	SymbolClass      SymbolType = "class"
	SymbolInterface  SymbolType = "interface"
	SymbolSchema     SymbolType = "schema"
	SymbolStyle      SymbolType = "style"
	SymbolJavaScript SymbolType = "javascript"
	SymbolTemplate   SymbolType = "template"
)

// CallSite records a call expression found inside a chunk's span.
type CallSite struct {
	Symbol string
	Line   int
}

// Chunk is the fundamental retrievable unit: a contiguous slice of one
// source file carrying structural metadata. Field names and shapes follow
// the engine's data model exactly so a vector store, manifest entry, or
// dependency analyzer never has to translate between representations.
type Chunk struct {
	ID      string // content-addressable, stable across line-number shifts
	Content string
	File    string // canonical relative path
	Language string

	StartLine int // 1-based inclusive
	EndLine   int // 1-based inclusive

	Type Type

	SymbolName  string
	SymbolType  SymbolType
	ParentClass string
	Parameters  []string
	Signature   string

	Imports         []string
	ImportedSymbols map[string][]string
	Exports         []string
	CallSites       []CallSite
	ReturnType      string

	Complexity          int
	CognitiveComplexity int
	HalsteadVolume      float64
	HalsteadDifficulty  float64
	HalsteadEffort      float64
	HalsteadBugs        float64

	RepoID string
	OrgID  string

	// IsGenerated is set when the owning file matched the generated-file
	// marker scan; the risk analyzer discounts generated dependents.
	IsGenerated bool
}

// FileInput is the input to a Chunker.
type FileInput struct {
	Path     string // canonical relative path
	Content  []byte
	Language string

	IsGenerated bool
	RepoID      string
	OrgID       string
}

// Options controls how a file is split into chunks. ChunkSize and
// ChunkOverlap are both measured in source lines.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	UseAST       bool
	ASTFallback  string // "line-based" is the only supported value today
}

// DefaultOptions returns the engine's documented chunking defaults.
func DefaultOptions() Options {
	return Options{
		ChunkSize:    DefaultChunkSizeLines,
		ChunkOverlap: DefaultChunkOverlapLines,
		UseAST:       true,
		ASTFallback:  "line-based",
	}
}

// Chunker is the interface for splitting a file into semantic chunks.
type Chunker interface {
	Chunk(ctx context.Context, file *FileInput, opts Options) ([]*Chunk, error)
	SupportedExtensions() []string
}

// Tree represents a parsed AST rooted at Root.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node represents a node in the AST. Parent is populated by the parser so
// traversal helpers (export-keyword detection, enclosing-container lookup)
// don't need a second pass.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	Parent     *Node
	HasError   bool
}

// Point is a position in the source code.
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}

// LanguageConfig holds the AST traverser configuration for one language tag.
type LanguageConfig struct {
	Name       string
	Extensions []string

	FunctionTypes  []string
	ClassTypes     []string
	InterfaceTypes []string
	MethodTypes    []string
	TypeDefTypes   []string
	ConstantTypes  []string
	VariableTypes  []string

	NameField string

	// HasGrammar is false for languages registered only to carry their
	// node-type tables and extension mapping; GetTreeSitterLanguage for
	// them intentionally misses so the chunker degrades to the
	// line-based fallback rather than silently skipping the language.
	HasGrammar bool
}
