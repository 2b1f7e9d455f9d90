package chunk

import (
	"strings"
	"unicode"
)

// fileMetadata holds the whole-file import/export facts the dependency
// analyzer (depanalysis) consumes. It is derived once per parse and then
// attached to every chunk produced from declarations in that file.
type fileMetadata struct {
	imports         []string
	importedSymbols map[string][]string
	exports         []string
}

// extractFileMetadata walks the root of a parsed tree for import and export
// statements, dispatching per language the same way the rest of the
// traverser does.
func extractFileMetadata(tree *Tree, language string) *fileMetadata {
	fm := &fileMetadata{importedSymbols: make(map[string][]string)}
	if tree == nil || tree.Root == nil {
		return fm
	}

	switch language {
	case "go":
		extractGoImportsExports(tree, fm)
	case "typescript", "tsx", "javascript", "jsx":
		extractJSImportsExports(tree, fm)
	case "python":
		extractPythonImports(tree, fm)
	}

	return fm
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '`' && s[len(s)-1] == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func extractGoImportsExports(tree *Tree, fm *fileMetadata) {
	for _, node := range tree.Root.Children {
		if node.Type != "import_declaration" {
			continue
		}
		node.Walk(func(n *Node) bool {
			if n.Type == "interpreted_string_literal" || n.Type == "raw_string_literal" {
				path := stripQuotes(n.GetContent(tree.Source))
				fm.imports = append(fm.imports, path)
			}
			return true
		})
	}

	// Go has no export keyword: capitalized top-level identifiers are exported.
	for _, node := range tree.Root.Children {
		name := topLevelGoDeclName(node, tree.Source)
		if name != "" && isExportedGoName(name) {
			fm.exports = append(fm.exports, name)
		}
	}
}

func isExportedGoName(name string) bool {
	r := []rune(name)
	return len(r) > 0 && unicode.IsUpper(r[0])
}

func topLevelGoDeclName(n *Node, source []byte) string {
	switch n.Type {
	case "function_declaration":
		for _, c := range n.Children {
			if c.Type == "identifier" {
				return c.GetContent(source)
			}
		}
	case "type_declaration":
		for _, c := range n.Children {
			if c.Type == "type_spec" {
				for _, gc := range c.Children {
					if gc.Type == "type_identifier" {
						return gc.GetContent(source)
					}
				}
			}
		}
	case "const_declaration", "var_declaration":
		specType := "const_spec"
		if n.Type == "var_declaration" {
			specType = "var_spec"
		}
		for _, c := range n.Children {
			if c.Type == specType {
				for _, gc := range c.Children {
					if gc.Type == "identifier" {
						return gc.GetContent(source)
					}
				}
			}
		}
	}
	return ""
}

// extractJSImportsExports handles both ESM import/export statements and
// CommonJS require() calls for the JS/TS family.
func extractJSImportsExports(tree *Tree, fm *fileMetadata) {
	tree.Root.Walk(func(n *Node) bool {
		switch n.Type {
		case "import_statement":
			handleJSImportStatement(n, tree.Source, fm)
		case "export_statement":
			handleJSExportStatement(n, tree.Source, fm)
		}
		return true
	})
}

func handleJSImportStatement(n *Node, source []byte, fm *fileMetadata) {
	var source_ string
	var names []string

	n.Walk(func(c *Node) bool {
		switch c.Type {
		case "string":
			source_ = stripQuotes(c.GetContent(source))
		case "import_specifier":
			for _, gc := range c.Children {
				if gc.Type == "identifier" {
					names = append(names, gc.GetContent(source))
					break
				}
			}
		case "identifier":
			if c.Parent != nil && c.Parent.Type == "import_clause" {
				names = append(names, c.GetContent(source))
			}
		}
		return true
	})

	if source_ == "" {
		return
	}
	fm.imports = append(fm.imports, source_)
	if len(names) > 0 {
		fm.importedSymbols[source_] = append(fm.importedSymbols[source_], names...)
	}
}

// handleJSExportStatement covers both `export function/class/const ...` (the
// exported name comes from the wrapped declaration) and the barrel-file
// re-export form `export { A, B } from './x'`, which is simultaneously an
// import-with-symbols and an export — the shape the dependency analyzer's
// re-export BFS (§4.9) looks for.
func handleJSExportStatement(n *Node, source []byte, fm *fileMetadata) {
	var reExportSource string
	var reExportNames []string
	var sawDeclaration bool

	for _, c := range n.Children {
		switch c.Type {
		case "string":
			reExportSource = stripQuotes(c.GetContent(source))
		case "export_clause":
			for _, gc := range c.Children {
				if gc.Type == "export_specifier" {
					for _, ggc := range gc.Children {
						if ggc.Type == "identifier" {
							reExportNames = append(reExportNames, ggc.GetContent(source))
							break
						}
					}
				}
			}
		case "function_declaration", "class_declaration", "lexical_declaration", "variable_declaration":
			sawDeclaration = true
			name := declarationName(c, source)
			if name != "" {
				fm.exports = append(fm.exports, name)
			}
		}
	}

	if reExportSource != "" {
		fm.imports = append(fm.imports, reExportSource)
		if len(reExportNames) > 0 {
			fm.importedSymbols[reExportSource] = append(fm.importedSymbols[reExportSource], reExportNames...)
			fm.exports = append(fm.exports, reExportNames...)
		}
	}

	_ = sawDeclaration
}

func declarationName(n *Node, source []byte) string {
	switch n.Type {
	case "function_declaration", "class_declaration":
		for _, c := range n.Children {
			if c.Type == "identifier" || c.Type == "type_identifier" {
				return c.GetContent(source)
			}
		}
	case "lexical_declaration", "variable_declaration":
		for _, c := range n.Children {
			if c.Type == "variable_declarator" {
				for _, gc := range c.Children {
					if gc.Type == "identifier" {
						return gc.GetContent(source)
					}
				}
			}
		}
	}
	return ""
}

// isExportedJSNode reports whether a declaration node is wrapped by an
// export_statement, i.e. `export function foo() {}`.
func isExportedJSNode(n *Node) bool {
	return n.Parent != nil && n.Parent.Type == "export_statement"
}

func extractPythonImports(tree *Tree, fm *fileMetadata) {
	for _, node := range tree.Root.Children {
		switch node.Type {
		case "import_statement":
			node.Walk(func(c *Node) bool {
				if c.Type == "dotted_name" || c.Type == "identifier" {
					fm.imports = append(fm.imports, c.GetContent(tree.Source))
				}
				return true
			})
		case "import_from_statement":
			var module string
			var names []string
			seenFrom := false
			for _, c := range node.Children {
				if c.Type == "from" {
					seenFrom = true
					continue
				}
				if c.Type == "dotted_name" && module == "" && seenFrom {
					module = c.GetContent(tree.Source)
					continue
				}
				if c.Type == "dotted_name" || c.Type == "identifier" {
					names = append(names, c.GetContent(tree.Source))
				}
			}
			if module != "" {
				fm.imports = append(fm.imports, module)
				if len(names) > 0 {
					fm.importedSymbols[module] = append(fm.importedSymbols[module], names...)
				}
			}
		}
	}
	// Python has no static export list; module-level public (non-underscore
	// prefixed) names are exposed by default but left unmodeled here since
	// the data model's `exports` field is documented as language-specific
	// and Python's convention is import-side, not declaration-side.
}
