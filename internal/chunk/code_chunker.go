package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// CodeChunker implements AST-aware code chunking using tree-sitter, falling
// back to pure line-based windowing for languages with no grammar wired
// (§4.3) and for files tree-sitter fails to parse.
type CodeChunker struct {
	parser    *Parser
	extractor *SymbolExtractor
	registry  *LanguageRegistry
}

// NewCodeChunker creates a new code chunker using the default language registry.
func NewCodeChunker() *CodeChunker {
	registry := DefaultRegistry()
	return &CodeChunker{
		parser:    NewParserWithRegistry(registry),
		extractor: NewSymbolExtractorWithRegistry(registry),
		registry:  registry,
	}
}

// Close releases chunker resources.
func (c *CodeChunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// SupportedExtensions returns file extensions this chunker handles.
func (c *CodeChunker) SupportedExtensions() []string {
	return c.registry.SupportedExtensions()
}

// Chunk splits a file into semantic chunks per the engine's chunking
// algorithm (§4.4): AST-guided extraction when a grammar is wired and
// UseAST is set, line-based windowing otherwise.
func (c *CodeChunker) Chunk(ctx context.Context, file *FileInput, opts Options) ([]*Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSizeLines
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = DefaultChunkOverlapLines
	}

	config, supported := c.registry.GetByName(file.Language)
	if !supported || !config.HasGrammar || !opts.UseAST {
		return c.chunkByLines(file, opts), nil
	}

	tree, err := c.parser.Parse(ctx, file.Content, file.Language)
	if err != nil || tree == nil {
		return c.chunkByLines(file, opts), nil
	}

	fm := extractFileMetadata(tree, file.Language)
	declNodes := c.findDeclarationNodes(tree, file.Language)
	if len(declNodes) == 0 {
		return c.chunkByLines(file, opts), nil
	}

	chunks := make([]*Chunk, 0, len(declNodes))
	for _, dn := range declNodes {
		chunks = append(chunks, c.createChunksFromNode(dn, tree, file, fm, opts)...)
	}

	chunks = append(chunks, c.fillGaps(chunks, tree, file, fm, opts)...)
	sortChunksByStartLine(chunks)

	return chunks, nil
}

// declNodeInfo pairs a declaration-defining AST node with the Declaration
// record extracted from it.
type declNodeInfo struct {
	node *Node
	decl *Declaration
}

// findDeclarationNodes walks the tree for every node matching one of the
// language's declaration categories, handling the JS/TS arrow-function and
// const-function special case ahead of the generic constant/variable match.
func (c *CodeChunker) findDeclarationNodes(tree *Tree, language string) []*declNodeInfo {
	config, ok := c.registry.GetByName(language)
	if !ok {
		return nil
	}

	kindOf := make(map[string]string)
	for _, t := range config.FunctionTypes {
		kindOf[t] = "function"
	}
	for _, t := range config.MethodTypes {
		kindOf[t] = "method"
	}
	for _, t := range config.ClassTypes {
		kindOf[t] = "class"
	}
	for _, t := range config.InterfaceTypes {
		kindOf[t] = "interface"
	}
	for _, t := range config.TypeDefTypes {
		kindOf[t] = "type"
	}
	for _, t := range config.ConstantTypes {
		kindOf[t] = "constant"
	}
	for _, t := range config.VariableTypes {
		kindOf[t] = "variable"
	}

	var infos []*declNodeInfo

	tree.Root.Walk(func(n *Node) bool {
		if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
			if decl := c.extractor.extractSpecialSymbol(n, tree.Source, language); decl != nil {
				infos = append(infos, &declNodeInfo{node: n, decl: decl})
				return true
			}
		}

		if _, isDecl := kindOf[n.Type]; isDecl {
			if decl := c.extractor.extractSymbolFromNode(n, tree.Source, config, language); decl != nil {
				infos = append(infos, &declNodeInfo{node: n, decl: decl})
			}
		}
		return true
	})

	return infos
}

// createChunksFromNode creates one or more chunks from a declaration node,
// splitting into line windows when the declaration exceeds the oversize
// threshold (3 * ChunkSize lines, per §4.4).
func (c *CodeChunker) createChunksFromNode(info *declNodeInfo, tree *Tree, file *FileInput, fm *fileMetadata, opts Options) []*Chunk {
	node := info.node
	startLine := int(node.StartPoint.Row) + 1
	endLine := int(node.EndPoint.Row) + 1
	lineCount := endLine - startLine + 1

	if lineCount <= opts.ChunkSize*OversizeMultiplier {
		content := rawLineSlice(file.Content, startLine, endLine)
		chunk := c.buildChunk(file, content, startLine, endLine, info.decl, node, tree, fm)
		return []*Chunk{chunk}
	}

	return c.splitOversizeDecl(info, tree, file, fm, opts)
}

// splitOversizeDecl splits a declaration spanning more than the oversize
// threshold into overlapping line windows, naming each window "<name>_partN"
// and, for the first window, also attaching the parent symbol name so a
// lookup for the whole declaration still resolves to a chunk.
func (c *CodeChunker) splitOversizeDecl(info *declNodeInfo, tree *Tree, file *FileInput, fm *fileMetadata, opts Options) []*Chunk {
	node := info.node
	declStart := int(node.StartPoint.Row) + 1
	declEnd := int(node.EndPoint.Row) + 1

	var chunks []*Chunk
	part := 0
	for start := declStart; start <= declEnd; {
		end := start + opts.ChunkSize - 1
		if end > declEnd {
			end = declEnd
		}
		part++

		content := rawLineSlice(file.Content, start, end)
		subDecl := &Declaration{
			Name:      fmt.Sprintf("%s_part%d", info.decl.Name, part),
			Kind:      info.decl.Kind,
			StartLine: start,
			EndLine:   end,
		}

		chunk := c.buildChunk(file, content, start, end, subDecl, node, tree, fm)
		if part == 1 {
			chunk.SymbolName = info.decl.Name
		}
		chunks = append(chunks, chunk)

		if end >= declEnd {
			break
		}
		next := end - opts.ChunkOverlap + 1
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// buildChunk assembles a Chunk from a declaration, attaching parent-class,
// parameter, signature, import/export, and call-site metadata.
func (c *CodeChunker) buildChunk(file *FileInput, content string, startLine, endLine int, decl *Declaration, node *Node, tree *Tree, fm *fileMetadata) *Chunk {
	chunk := &Chunk{
		ID:          generateChunkID(file.Path, content),
		Content:     content,
		File:        file.Path,
		Language:    file.Language,
		StartLine:   startLine,
		EndLine:     endLine,
		Type:        chunkTypeForKind(decl.Kind),
		SymbolName:  decl.Name,
		SymbolType:  symbolTypeForKind(decl.Kind),
		Signature:   decl.Signature,
		RepoID:      file.RepoID,
		OrgID:       file.OrgID,
		IsGenerated: file.IsGenerated,
	}

	if decl.Kind == "method" {
		chunk.ParentClass = enclosingClassName(node, tree.Source, file.Language)
	}
	chunk.Parameters = extractParameters(node, tree.Source, file.Language)
	chunk.ReturnType = extractReturnType(node, tree.Source, file.Language)
	chunk.CallSites = extractCallSites(node, tree.Source, startLine)

	if fm != nil {
		chunk.Imports = fm.imports
		chunk.ImportedSymbols = fm.importedSymbols
		if isTopLevelExport(node, tree.Source, file.Language) {
			chunk.Exports = []string{decl.Name}
		}
	}

	metrics := computeMetrics(node, tree.Source)
	chunk.Complexity = metrics.cyclomatic
	chunk.CognitiveComplexity = metrics.cognitive
	chunk.HalsteadVolume = metrics.halsteadVolume
	chunk.HalsteadDifficulty = metrics.halsteadDifficulty
	chunk.HalsteadEffort = metrics.halsteadEffort
	chunk.HalsteadBugs = metrics.halsteadBugs

	return chunk
}

func chunkTypeForKind(kind string) Type {
	if kind == "class" || kind == "interface" {
		return TypeClass
	}
	if kind == "function" || kind == "method" {
		return TypeFunction
	}
	return TypeBlock
}

func symbolTypeForKind(kind string) SymbolType {
	switch kind {
	case "function":
		return SymbolFunction
	case "method":
		return SymbolMethod
	case "class":
		return SymbolClass
	case "interface":
		return SymbolInterface
	}
	// type/constant/variable declarations carry a symbol_name but no
	// symbol_type value in the data model (§3).
	return ""
}

// isTopLevelExport reports whether a declaration node is externally visible:
// a capitalized Go identifier, or a JS/TS node wrapped in export_statement.
func isTopLevelExport(n *Node, source []byte, language string) bool {
	switch language {
	case "go":
		return isExportedGoName(nameOfGoNode(n, source))
	case "typescript", "tsx", "javascript", "jsx":
		return isExportedJSNode(n)
	}
	return false
}

func nameOfGoNode(n *Node, source []byte) string {
	for _, c := range n.Children {
		if c.Type == "identifier" || c.Type == "field_identifier" || c.Type == "type_identifier" {
			return c.GetContent(source)
		}
	}
	return ""
}

// enclosingClassName walks up the parent chain to find the name of the
// class/struct/impl block a method belongs to.
func enclosingClassName(n *Node, source []byte, language string) string {
	for p := n.Parent; p != nil; p = p.Parent {
		switch language {
		case "typescript", "tsx", "javascript", "jsx":
			if p.Type == "class_declaration" || p.Type == "class" {
				for _, c := range p.Children {
					if c.Type == "identifier" || c.Type == "type_identifier" {
						return c.GetContent(source)
					}
				}
			}
		case "python":
			if p.Type == "class_definition" {
				for _, c := range p.Children {
					if c.Type == "identifier" {
						return c.GetContent(source)
					}
				}
			}
		}
	}
	return ""
}

// extractParameters pulls parameter names from a function/method node's
// parameter list.
func extractParameters(n *Node, source []byte, language string) []string {
	var paramListTypes = map[string][]string{
		"go":         {"parameter_list"},
		"typescript": {"formal_parameters"},
		"tsx":        {"formal_parameters"},
		"javascript": {"formal_parameters"},
		"jsx":        {"formal_parameters"},
		"python":     {"parameters"},
	}

	targets, ok := paramListTypes[language]
	if !ok {
		return nil
	}

	var params []string
	n.Walk(func(c *Node) bool {
		for _, t := range targets {
			if c.Type == t {
				collectParamNames(c, source, &params)
				return false
			}
		}
		return true
	})
	return params
}

func collectParamNames(n *Node, source []byte, out *[]string) {
	for _, c := range n.Children {
		switch c.Type {
		case "identifier":
			*out = append(*out, c.GetContent(source))
		case "parameter_declaration", "required_parameter", "optional_parameter", "typed_parameter", "default_parameter":
			for _, gc := range c.Children {
				if gc.Type == "identifier" {
					*out = append(*out, gc.GetContent(source))
					break
				}
			}
		}
	}
}

// extractReturnType finds the declared return type of a Go/TS function node.
func extractReturnType(n *Node, source []byte, language string) string {
	switch language {
	case "go":
		for _, c := range n.Children {
			if c.Type == "type_identifier" || c.Type == "pointer_type" || c.Type == "qualified_type" {
				return c.GetContent(source)
			}
		}
	case "typescript", "tsx":
		for _, c := range n.Children {
			if c.Type == "type_annotation" {
				return strings.TrimPrefix(c.GetContent(source), ":")
			}
		}
	}
	return ""
}

// extractCallSites scans a declaration body for call expressions, recording
// the callee name and its absolute source line.
func extractCallSites(n *Node, source []byte, baseLine int) []CallSite {
	var sites []CallSite
	n.Walk(func(c *Node) bool {
		if c.Type != "call_expression" {
			return true
		}
		var callee *Node
		for _, gc := range c.Children {
			if gc.Type == "identifier" || gc.Type == "selector_expression" || gc.Type == "member_expression" {
				callee = gc
				break
			}
		}
		if callee != nil {
			sites = append(sites, CallSite{
				Symbol: callee.GetContent(source),
				Line:   int(c.StartPoint.Row) + 1,
			})
		}
		return true
	})
	return sites
}

// fillGaps emits block-type chunks for any line range in the file that no
// declaration chunk covers, windowed the same way the line-based fallback
// windows a whole file.
func (c *CodeChunker) fillGaps(chunks []*Chunk, tree *Tree, file *FileInput, fm *fileMetadata, opts Options) []*Chunk {
	totalLines := countLines(file.Content)
	covered := make([]bool, totalLines+2)
	for _, ch := range chunks {
		for l := ch.StartLine; l <= ch.EndLine && l < len(covered); l++ {
			covered[l] = true
		}
	}

	var gapChunks []*Chunk
	line := 1
	for line <= totalLines {
		if covered[line] {
			line++
			continue
		}
		start := line
		for line <= totalLines && !covered[line] {
			line++
		}
		end := line - 1
		if strings.TrimSpace(rawLineSlice(file.Content, start, end)) == "" {
			continue
		}
		for ws := start; ws <= end; ws += opts.ChunkSize {
			we := ws + opts.ChunkSize - 1
			if we > end {
				we = end
			}
			content := rawLineSlice(file.Content, ws, we)
			gapChunks = append(gapChunks, &Chunk{
				ID:          generateChunkID(file.Path, content),
				Content:     content,
				File:        file.Path,
				Language:    file.Language,
				StartLine:   ws,
				EndLine:     we,
				Type:        TypeBlock,
				Imports:     fm.imports,
				RepoID:      file.RepoID,
				OrgID:       file.OrgID,
				IsGenerated: file.IsGenerated,
			})
		}
	}
	return gapChunks
}

// chunkByLines is the fallback for files with no grammar wired or that
// failed to parse: pure line windows of ChunkSize lines with ChunkOverlap
// lines of overlap, per §4.4.
func (c *CodeChunker) chunkByLines(file *FileInput, opts Options) []*Chunk {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	var chunks []*Chunk

	for i := 0; i < len(lines); {
		end := i + opts.ChunkSize
		if end > len(lines) {
			end = len(lines)
		}

		chunkContent := strings.Join(lines[i:end], "\n")
		startLine := i + 1
		endLine := end

		chunks = append(chunks, &Chunk{
			ID:          generateChunkID(file.Path, chunkContent),
			Content:     chunkContent,
			File:        file.Path,
			Language:    file.Language,
			StartLine:   startLine,
			EndLine:     endLine,
			Type:        TypeBlock,
			RepoID:      file.RepoID,
			OrgID:       file.OrgID,
			IsGenerated: file.IsGenerated,
		})

		if end >= len(lines) {
			break
		}
		next := end - opts.ChunkOverlap
		if next <= i {
			next = i + 1
		}
		i = next
	}

	return chunks
}

func rawLineSlice(content []byte, startLine, endLine int) string {
	lines := strings.Split(string(content), "\n")
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine {
		return ""
	}
	return strings.Join(lines[startLine-1:endLine], "\n")
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	return strings.Count(string(content), "\n") + 1
}

func sortChunksByStartLine(chunks []*Chunk) {
	for i := 1; i < len(chunks); i++ {
		for j := i; j > 0 && chunks[j-1].StartLine > chunks[j].StartLine; j-- {
			chunks[j-1], chunks[j] = chunks[j], chunks[j-1]
		}
	}
}

// generateChunkID generates a content-addressable chunk ID from file path
// and content. Same content in the same file yields the same ID, stable
// across line-number shifts; different content yields a different ID,
// which is what drives re-embedding during incremental indexing.
func generateChunkID(filePath string, content string) string {
	contentHash := sha256.Sum256([]byte(content))
	contentHashStr := hex.EncodeToString(contentHash[:])[:16]

	input := fmt.Sprintf("%s:%s", filePath, contentHashStr)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}
