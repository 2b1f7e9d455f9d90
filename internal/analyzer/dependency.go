// Package analyzer computes, for a target file, which chunks depend on it
// — directly via an import statement, or transitively through a chain of
// barrel re-exports — and scores the aggregate risk of changing it.
//
// The teacher has no import-graph or risk-scoring subsystem to adapt; this
// package is built fresh on the teacher's general idiom (plain maps and
// slices, no generic graph library), operating over the
// Imports/ImportedSymbols/Exports/Complexity fields chunk.Chunk already
// carries (internal/chunk/types.go), and borrowing the teacher's
// bounded-depth-BFS-over-adjacency shape from the scanner's submodule walk
// (internal/scanner/scanner.go) for the re-export traversal.
package analyzer

import (
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Aman-CERP/amanmcp/internal/chunk"
)

// RiskLevel is an ordered risk classification: low < medium < high < critical.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "low"
	}
}

// maxReExportDepth bounds the barrel-re-export BFS (§9: cyclic graphs are
// possible, so depth, not dry-run exhaustion, is what terminates it).
const maxReExportDepth = 3

// FileComplexity aggregates complexity stats for one dependent file.
type FileComplexity struct {
	Path           string
	AvgComplexity  float64
	MaxComplexity  int
	ChunksAnalyzed int
	IsTest         bool
}

// Result is the Dependency Analyzer's output for one target file.
type Result struct {
	Target     string
	Dependents []*chunk.Chunk
	Files      []*FileComplexity

	AverageComplexity       float64
	MaximumComplexity       int
	HighComplexityDependents []string // top 5, max_complexity > 10

	DependentCount int
	Risk           RiskLevel
}

// Index is a precomputed view over a chunk set, built once and reused
// across multiple Analyze calls. It owns no mutable state beyond its own
// construction — callers are free to memoise it.
type Index struct {
	chunks         []*chunk.Chunk
	importIndex    map[string][]*chunk.Chunk // normalised import target -> importing chunks
	byCanonicalPath map[string][]*chunk.Chunk
}

// BuildIndex constructs an Index over chunks.
func BuildIndex(chunks []*chunk.Chunk) *Index {
	idx := &Index{
		chunks:          chunks,
		importIndex:     make(map[string][]*chunk.Chunk),
		byCanonicalPath: make(map[string][]*chunk.Chunk),
	}
	for _, c := range chunks {
		canon := canonicalPath(c.File)
		idx.byCanonicalPath[canon] = append(idx.byCanonicalPath[canon], c)
		for _, imp := range c.Imports {
			norm := normalizeImportTarget(imp)
			idx.importIndex[norm] = append(idx.importIndex[norm], c)
		}
		for imp := range c.ImportedSymbols {
			norm := normalizeImportTarget(imp)
			idx.importIndex[norm] = append(idx.importIndex[norm], c)
		}
	}
	return idx
}

// Analyze computes the dependency/risk Result for target.
func (idx *Index) Analyze(target string) *Result {
	normTarget := normalizeImportTarget(target)

	dependents := idx.directDependents(normTarget)
	seenKeys := dependentKeySet(dependents)

	transitive := idx.transitiveReExportDependents(normTarget, dependents, seenKeys)
	dependents = append(dependents, transitive...)

	// Per-file aggregates run over every chunk of a dependent file (via
	// chunks_by_canonical_path), not only the chunk(s) that literally
	// import the target — a risk assessment is about the file as a whole.
	byFile := make(map[string][]*chunk.Chunk)
	for _, c := range dependents {
		filePath := canonicalPath(c.File)
		if _, ok := byFile[filePath]; ok {
			continue
		}
		byFile[filePath] = idx.byCanonicalPath[filePath]
	}

	var files []*FileComplexity
	var totalComplexity, totalChunks, maxComplexity int
	var highComplexity []*FileComplexity
	for filePath, chunks := range byFile {
		fc := &FileComplexity{Path: filePath, IsTest: isTestFile(filePath)}
		sum := 0
		for _, c := range chunks {
			sum += c.Complexity
			fc.ChunksAnalyzed++
			if c.Complexity > fc.MaxComplexity {
				fc.MaxComplexity = c.Complexity
			}
		}
		if fc.ChunksAnalyzed > 0 {
			fc.AvgComplexity = float64(sum) / float64(fc.ChunksAnalyzed)
		}
		files = append(files, fc)

		totalComplexity += sum
		totalChunks += fc.ChunksAnalyzed
		if fc.MaxComplexity > maxComplexity {
			maxComplexity = fc.MaxComplexity
		}
		if fc.MaxComplexity > 10 {
			highComplexity = append(highComplexity, fc)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	sort.Slice(highComplexity, func(i, j int) bool {
		return highComplexity[i].MaxComplexity > highComplexity[j].MaxComplexity
	})
	if len(highComplexity) > 5 {
		highComplexity = highComplexity[:5]
	}
	highPaths := make([]string, len(highComplexity))
	for i, fc := range highComplexity {
		highPaths[i] = fc.Path
	}

	var avgComplexity float64
	if totalChunks > 0 {
		avgComplexity = float64(totalComplexity) / float64(totalChunks)
	}

	result := &Result{
		Target:                   target,
		Dependents:               dependents,
		Files:                    files,
		AverageComplexity:        avgComplexity,
		MaximumComplexity:        maxComplexity,
		HighComplexityDependents: highPaths,
		DependentCount:           len(byFile),
	}
	result.Risk = combinedRisk(riskFromDependentCount(result.DependentCount), riskFromComplexity(avgComplexity, maxComplexity))
	return result
}

func (idx *Index) directDependents(normTarget string) []*chunk.Chunk {
	var out []*chunk.Chunk
	seen := make(map[string]bool)
	add := func(c *chunk.Chunk) {
		key := chunkKey(c)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, c)
	}

	for _, c := range idx.importIndex[normTarget] {
		add(c)
	}
	for key, chunks := range idx.importIndex {
		if key == normTarget {
			continue
		}
		if pathsMatch(key, normTarget) {
			for _, c := range chunks {
				add(c)
			}
		}
	}
	return out
}

// transitiveReExportDependents performs a depth-bounded BFS over the
// re-export graph. The frontier starts at the target itself plus any
// direct dependent that is itself a barrel (imports the target and
// exports names of its own). At each hop it finds every file importing
// from the current frontier — all of those are transitive dependents —
// and, among those, the ones that themselves export become next hop's
// frontier, so a chain of barrels (barrel-of-barrels) is followed up to
// maxReExportDepth levels deep. The frontier is tracked as normalised
// module addresses (the same form import strings and file paths both
// reduce to via normalizeImportTarget) so a relative import like
// "./index" matches the file it resolves to ("src/index.ts") without a
// resolver.
func (idx *Index) transitiveReExportDependents(normTarget string, directDependents []*chunk.Chunk, seenKeys map[string]bool) []*chunk.Chunk {
	var out []*chunk.Chunk

	visitedFiles := make(map[string]bool, len(directDependents))
	frontier := []string{normTarget}
	for _, c := range directDependents {
		filePath := canonicalPath(c.File)
		visitedFiles[filePath] = true
		if len(c.Exports) > 0 {
			frontier = append(frontier, normalizeImportTarget(filePath))
		}
	}

	for depth := 0; depth < maxReExportDepth && len(frontier) > 0; depth++ {
		importers := idx.importersOf(frontier, visitedFiles)
		if len(importers) == 0 {
			break
		}
		var next []string
		for filePath, chunks := range importers {
			visitedFiles[filePath] = true
			isReExporter := false
			for _, c := range chunks {
				key := chunkKey(c)
				if !seenKeys[key] {
					seenKeys[key] = true
					out = append(out, c)
				}
				if len(c.Exports) > 0 {
					isReExporter = true
				}
			}
			if isReExporter {
				next = append(next, normalizeImportTarget(filePath))
			}
		}
		frontier = next
	}
	return out
}

// importersOf returns, for each not-yet-visited file with a chunk that
// imports from one of targets (fuzzy-matched via pathsMatch, same rule as
// direct dependents), the canonical path mapped to its matching chunks.
func (idx *Index) importersOf(targets []string, visitedFiles map[string]bool) map[string][]*chunk.Chunk {
	out := make(map[string][]*chunk.Chunk)
	for _, c := range idx.chunks {
		filePath := canonicalPath(c.File)
		if visitedFiles[filePath] {
			continue
		}
		imports := make([]string, 0, len(c.Imports)+len(c.ImportedSymbols))
		imports = append(imports, c.Imports...)
		for imp := range c.ImportedSymbols {
			imports = append(imports, imp)
		}
		for _, imp := range imports {
			norm := normalizeImportTarget(imp)
			matched := false
			for _, t := range targets {
				if pathsMatch(norm, t) {
					matched = true
					break
				}
			}
			if matched {
				out[filePath] = append(out[filePath], c)
				break
			}
		}
	}
	return out
}

func riskFromDependentCount(count int) RiskLevel {
	switch {
	case count <= 5:
		return RiskLow
	case count <= 15:
		return RiskMedium
	case count <= 30:
		return RiskHigh
	default:
		return RiskCritical
	}
}

func riskFromComplexity(avg float64, max int) RiskLevel {
	switch {
	case avg > 15 || max > 25:
		return RiskCritical
	case avg > 10 || max > 20:
		return RiskHigh
	case avg > 6 || max > 15:
		return RiskMedium
	default:
		return RiskLow
	}
}

func combinedRisk(a, b RiskLevel) RiskLevel {
	if a > b {
		return a
	}
	return b
}

func chunkKey(c *chunk.Chunk) string {
	return canonicalPath(c.File) + ":" + strconv.Itoa(c.StartLine) + ":" + strconv.Itoa(c.EndLine)
}

func dependentKeySet(chunks []*chunk.Chunk) map[string]bool {
	out := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		out[chunkKey(c)] = true
	}
	return out
}

func canonicalPath(p string) string {
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}

// normalizeImportTarget normalises an import path per §9: strip
// surrounding quotes, normalise backslashes to slashes, strip a trailing
// extension, and fold dotted Python modules / PHP namespaces to slash
// form.
func normalizeImportTarget(target string) string {
	t := strings.Trim(target, `"'`)
	t = strings.ReplaceAll(t, "\\", "/")
	t = strings.TrimPrefix(t, "crate::")
	t = strings.TrimPrefix(t, "super::")
	t = strings.TrimPrefix(t, "src/")
	t = strings.TrimPrefix(t, "./")
	if strings.Contains(t, "::") {
		t = strings.ReplaceAll(t, "::", "/")
	}
	// Dotted Python module path: only fold when it looks like a module
	// path rather than a relative single-extension filename (e.g.
	// "pkg.sub.mod" -> "pkg/sub/mod"; "./util.py" stays as-is here and is
	// stripped of its extension below).
	if !strings.Contains(t, "/") && strings.Count(t, ".") > 0 && !hasKnownExtension(t) {
		t = strings.ReplaceAll(t, ".", "/")
	}
	t = stripKnownExtension(t)
	return strings.TrimSuffix(t, "/")
}

var knownExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".rs", ".py"}

func hasKnownExtension(p string) bool {
	for _, ext := range knownExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

func stripKnownExtension(p string) string {
	for _, ext := range knownExtensions {
		if strings.HasSuffix(p, ext) {
			return strings.TrimSuffix(p, ext)
		}
	}
	return p
}

// pathsMatch implements §9's path-matching contract: after normalisation,
// one path is a suffix of the other at a component boundary (start, end,
// or a "/").
func pathsMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	return suffixAtComponentBoundary(a, b) || suffixAtComponentBoundary(b, a)
}

func suffixAtComponentBoundary(longer, shorter string) bool {
	if !strings.HasSuffix(longer, shorter) {
		return false
	}
	if len(longer) == len(shorter) {
		return true
	}
	boundaryIdx := len(longer) - len(shorter) - 1
	return longer[boundaryIdx] == '/'
}

var testPathComponents = map[string]bool{
	"test": true, "tests": true, "__tests__": true,
	"spec": true, "specs": true, "e2e": true,
}

var testFileRegex = regexp.MustCompile(`\.(test|spec)\.[^/]+$`)

// isTestFile applies §9's test-file classification: a *.test.*/*.spec.*
// suffix, or any path component exactly equal to a recognised test
// directory/file marker.
func isTestFile(p string) bool {
	if testFileRegex.MatchString(p) {
		return true
	}
	for _, part := range strings.Split(p, "/") {
		if testPathComponents[strings.ToLower(part)] {
			return true
		}
	}
	return false
}
