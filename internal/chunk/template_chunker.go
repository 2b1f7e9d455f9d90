package chunk

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

// TemplateChunker implements block-based chunking for Liquid/HTML template
// files: schema, style, and script blocks are isolated as their own chunks
// (mirroring the header-section isolation the Markdown chunker does for
// "##"-delimited sections), and render/include references are collected
// into each chunk's imports so the dependency analyzer can follow template
// composition the same way it follows source imports.
type TemplateChunker struct{}

var (
	schemaBlockPattern     = regexp.MustCompile(`(?s)\{%-?\s*schema\s*-?%\}(.*?)\{%-?\s*endschema\s*-?%\}`)
	styleBlockPattern      = regexp.MustCompile(`(?s)\{%-?\s*style\s*-?%\}(.*?)\{%-?\s*endstyle\s*-?%\}`)
	javascriptBlockPattern = regexp.MustCompile(`(?s)\{%-?\s*javascript\s*-?%\}(.*?)\{%-?\s*endjavascript\s*-?%\}`)

	renderIncludePattern = regexp.MustCompile(`\{%-?\s*(?:render|include)\s+['"]([^'"]+)['"]`)
	liquidCommentPattern = regexp.MustCompile(`(?s)\{%-?\s*comment\s*-?%\}.*?\{%-?\s*endcomment\s*-?%\}`)
)

// NewTemplateChunker creates a new template chunker.
func NewTemplateChunker() *TemplateChunker {
	return &TemplateChunker{}
}

// Close releases chunker resources. TemplateChunker is stateless.
func (c *TemplateChunker) Close() {}

// SupportedExtensions returns file extensions this chunker handles.
func (c *TemplateChunker) SupportedExtensions() []string {
	return []string{".liquid", ".vue"}
}

type templateBlock struct {
	kind      string // "schema" | "style" | "javascript"
	content   string
	startLine int
	endLine   int
}

// Chunk splits a template file into one chunk per schema/style/javascript
// block plus template-type block chunks covering whatever markup remains.
func (c *TemplateChunker) Chunk(ctx context.Context, file *FileInput, opts Options) ([]*Chunk, error) {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSizeLines
	}

	blocks := findTemplateBlocks(content)
	imports := extractRenderReferences(content)

	var chunks []*Chunk
	covered := make([]bool, countLines(file.Content)+2)

	for _, b := range blocks {
		for l := b.startLine; l <= b.endLine && l < len(covered); l++ {
			covered[l] = true
		}
		chunks = append(chunks, c.buildBlockChunk(file, b, imports))
	}

	chunks = append(chunks, c.fillTemplateGaps(file, covered, imports, opts)...)
	sortChunksByStartLine(chunks)

	return chunks, nil
}

// buildBlockChunk turns a schema/style/javascript block into a chunk. A
// schema block's declared "name" field (if its body parses as JSON) becomes
// the chunk's symbol_name, giving the dependency analyzer a stable handle on
// named sections the way it has one for a function or class.
func (c *TemplateChunker) buildBlockChunk(file *FileInput, b templateBlock, imports []string) *Chunk {
	chunk := &Chunk{
		ID:        generateChunkID(file.Path, b.content),
		Content:   b.content,
		File:      file.Path,
		Language:  file.Language,
		StartLine: b.startLine,
		EndLine:   b.endLine,
		Type:      TypeTemplate,
		Imports:   imports,

		RepoID:      file.RepoID,
		OrgID:       file.OrgID,
		IsGenerated: file.IsGenerated,
	}

	switch b.kind {
	case "schema":
		chunk.SymbolType = SymbolSchema
		chunk.SymbolName = schemaName(b.content)
	case "style":
		chunk.SymbolType = SymbolStyle
	case "javascript":
		chunk.SymbolType = SymbolJavaScript
	}

	return chunk
}

// schemaName extracts the "name" field from a Shopify-style {% schema %}
// JSON body. Returns "" if the body doesn't parse as JSON or has no name.
func schemaName(body string) string {
	var parsed struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return ""
	}
	return parsed.Name
}

// fillTemplateGaps emits plain template-type chunks for the markup outside
// any schema/style/javascript block, windowed by ChunkSize lines.
func (c *TemplateChunker) fillTemplateGaps(file *FileInput, covered []bool, imports []string, opts Options) []*Chunk {
	totalLines := countLines(file.Content)
	var chunks []*Chunk

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
			chunks = append(chunks, &Chunk{
				ID:          generateChunkID(file.Path, content),
				Content:     content,
				File:        file.Path,
				Language:    file.Language,
				StartLine:   ws,
				EndLine:     we,
				Type:        TypeTemplate,
				Imports:     imports,
				RepoID:      file.RepoID,
				OrgID:       file.OrgID,
				IsGenerated: file.IsGenerated,
			})
		}
	}

	return chunks
}

// findTemplateBlocks locates every schema/style/javascript block and its
// 1-based inclusive line range.
func findTemplateBlocks(content string) []templateBlock {
	var blocks []templateBlock
	blocks = append(blocks, extractBlocks(content, schemaBlockPattern, "schema")...)
	blocks = append(blocks, extractBlocks(content, styleBlockPattern, "style")...)
	blocks = append(blocks, extractBlocks(content, javascriptBlockPattern, "javascript")...)
	return blocks
}

func extractBlocks(content string, pattern *regexp.Regexp, kind string) []templateBlock {
	var blocks []templateBlock
	for _, loc := range pattern.FindAllStringSubmatchIndex(content, -1) {
		fullStart, fullEnd := loc[0], loc[1]
		bodyStart, bodyEnd := loc[2], loc[3]

		startLine := strings.Count(content[:fullStart], "\n") + 1
		endLine := strings.Count(content[:fullEnd], "\n") + 1

		blocks = append(blocks, templateBlock{
			kind:      kind,
			content:   strings.TrimSpace(content[bodyStart:bodyEnd]),
			startLine: startLine,
			endLine:   endLine,
		})
	}
	return blocks
}

// extractRenderReferences scans a template for {% render %}/{% include %}
// references, stripping {% comment %} blocks first so commented-out
// references don't appear as live dependencies.
func extractRenderReferences(content string) []string {
	stripped := liquidCommentPattern.ReplaceAllString(content, "")

	var refs []string
	seen := make(map[string]bool)
	for _, match := range renderIncludePattern.FindAllStringSubmatch(stripped, -1) {
		ref := match[1]
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	return refs
}
