package chunk

import "math"

// declMetrics holds the complexity and Halstead figures attached to a chunk.
type declMetrics struct {
	cyclomatic         int
	cognitive          int
	halsteadVolume     float64
	halsteadDifficulty float64
	halsteadEffort     float64
	halsteadBugs       float64
}

// branchNodeTypes lists AST node types that add one to cyclomatic complexity:
// one path through the decision point beyond the default fall-through.
var branchNodeTypes = map[string]bool{
	"if_statement":          true,
	"for_statement":         true,
	"for_in_statement":      true,
	"for_range_clause":      true,
	"while_statement":       true,
	"case_clause":           true,
	"default_case":          true,
	"catch_clause":          true,
	"conditional_expression": true,
	"binary_expression":     true, // narrowed to &&/|| below
	"select_statement":      true,
	"communication_case":    true,
	"except_clause":         true,
	"elif_clause":           true,
}

// nestingNodeTypes increases cognitive complexity's nesting weight: each
// level of nesting makes the same construct count for more.
var nestingNodeTypes = map[string]bool{
	"if_statement":     true,
	"for_statement":    true,
	"for_in_statement": true,
	"while_statement":  true,
	"try_statement":    true,
}

// operatorNodeTypes and operandNodeTypes approximate Halstead's vocabulary
// split: operators are node *types* (structural), operands are the leaf
// identifier/literal content.
var operandNodeTypes = map[string]bool{
	"identifier":               true,
	"field_identifier":         true,
	"type_identifier":          true,
	"interpreted_string_literal": true,
	"raw_string_literal":       true,
	"string":                   true,
	"int_literal":              true,
	"integer":                  true,
	"float_literal":            true,
	"float":                    true,
	"true":                     true,
	"false":                    true,
}

// computeMetrics derives cyclomatic complexity, a nesting-weighted cognitive
// complexity approximation, and Halstead volume/difficulty/effort/bugs for
// the subtree rooted at n.
func computeMetrics(n *Node, source []byte) declMetrics {
	if n == nil {
		return declMetrics{cyclomatic: 1}
	}

	cyclomatic := 1
	cognitive := 0
	operatorCounts := make(map[string]int)
	operandCounts := make(map[string]int)

	var walk func(node *Node, depth int)
	walk = func(node *Node, depth int) {
		if node.Type == "binary_expression" {
			// Only logical operators add a decision point; arithmetic/comparison
			// binary expressions don't branch control flow.
		} else if branchNodeTypes[node.Type] {
			cyclomatic++
			cognitive += 1 + depth
		}

		nextDepth := depth
		if nestingNodeTypes[node.Type] {
			nextDepth = depth + 1
		}

		if operandNodeTypes[node.Type] {
			operandCounts[node.GetContent(source)]++
		} else if len(node.Children) == 0 && node.Type != "" {
			operatorCounts[node.Type]++
		}

		for _, c := range node.Children {
			walk(c, nextDepth)
		}
	}
	walk(n, 0)

	distinctOperators := len(operatorCounts)
	distinctOperands := len(operandCounts)
	totalOperators := 0
	for _, v := range operatorCounts {
		totalOperators += v
	}
	totalOperands := 0
	for _, v := range operandCounts {
		totalOperands += v
	}

	vocabulary := distinctOperators + distinctOperands
	length := totalOperators + totalOperands

	var volume, difficulty, effort, bugs float64
	if vocabulary > 0 && length > 0 {
		volume = float64(length) * math.Log2(float64(vocabulary))
		if distinctOperands > 0 {
			difficulty = (float64(distinctOperators) / 2.0) * (float64(totalOperands) / float64(distinctOperands))
		}
		effort = difficulty * volume
		bugs = volume / 3000.0
	}

	return declMetrics{
		cyclomatic:         cyclomatic,
		cognitive:          cognitive,
		halsteadVolume:     volume,
		halsteadDifficulty: difficulty,
		halsteadEffort:     effort,
		halsteadBugs:       bugs,
	}
}
