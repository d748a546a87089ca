/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package tree

import "fmt"
import "strconv"
import "strings"
import packrat "github.com/launix-de/go-packrat/v2"

/*
tree text format:

	tree depth 2 features 3 {
		node 0: x0 < 0.5
		node 1: sqrt(x1) > 0.25
		node 2: ln(x2) < -0.69
	}

every internal index 0..2^depth-2 must be defined exactly once
*/

type treeParser struct {
	root     packrat.Parser
	nodeLine packrat.Parser
	sqrtExpr packrat.Parser
	lnExpr   packrat.Parser
	featRef  packrat.Parser
}

func newTreeParser() *treeParser {
	p := new(treeParser)
	intP := packrat.NewRegexParser(`[0-9]+`, false, true)
	numP := packrat.NewRegexParser(`-?[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?`, false, true)
	p.featRef = packrat.NewRegexParser(`x[0-9]+`, false, true)
	p.sqrtExpr = packrat.NewAndParser(
		packrat.NewAtomParser("sqrt", false, true),
		packrat.NewAtomParser("(", false, true),
		p.featRef,
		packrat.NewAtomParser(")", false, true),
	)
	p.lnExpr = packrat.NewAndParser(
		packrat.NewAtomParser("ln", false, true),
		packrat.NewAtomParser("(", false, true),
		p.featRef,
		packrat.NewAtomParser(")", false, true),
	)
	operand := packrat.NewOrParser(p.sqrtExpr, p.lnExpr, p.featRef)
	comp := packrat.NewOrParser(
		packrat.NewAtomParser("<", false, true),
		packrat.NewAtomParser(">", false, true),
	)
	p.nodeLine = packrat.NewAndParser(
		packrat.NewAtomParser("node", false, true),
		intP,
		packrat.NewAtomParser(":", false, true),
		operand,
		comp,
		numP,
	)
	p.root = packrat.NewAndParser(
		packrat.NewAtomParser("tree", false, true),
		packrat.NewAtomParser("depth", false, true),
		intP,
		packrat.NewAtomParser("features", false, true),
		intP,
		packrat.NewAtomParser("{", false, true),
		packrat.NewKleeneParser(p.nodeLine, packrat.NewEmptyParser()),
		packrat.NewAtomParser("}", false, true),
		packrat.NewEndParser(true),
	)
	return p
}

var defaultTreeParser = newTreeParser()

// ParseTree reads the tree text format and returns a validated tree.
func ParseTree(src string) (t *DecisionTree, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tree: %v", r)
		}
	}()
	p := defaultTreeParser
	scanner := packrat.NewScanner(src, packrat.SkipWhitespaceAndCommentsRegex)
	node, perr := packrat.Parse(p.root, scanner)
	if perr != nil {
		return nil, fmt.Errorf("tree: %v", perr)
	}

	depth := mustAtoi(node.Children[2].Matched)
	features := mustAtoi(node.Children[4].Matched)
	numNodes := TreeNodes(depth)
	t = &DecisionTree{
		Depth:    depth,
		Features: features,
		Nodes:    make([]TreeNode, numNodes),
	}

	seen := make([]bool, numNodes)
	lines := node.Children[6] // kleene over node lines
	for i := 0; i < len(lines.Children); i += 2 {
		line := lines.Children[i]
		idx := int64(mustAtoi(line.Children[1].Matched))
		if idx < 0 || idx >= numNodes {
			return nil, fmt.Errorf("tree: node index %d out of range [0,%d)", idx, numNodes)
		}
		if seen[idx] {
			return nil, fmt.Errorf("tree: node %d defined twice", idx)
		}
		seen[idx] = true

		var tn TreeNode
		operand := line.Children[3].Children[0]
		switch operand.Parser {
		case p.sqrtExpr:
			tn.Op = Sqrt
			tn.FeatureIdx = featureIdxOf(operand.Children[2].Matched)
		case p.lnExpr:
			tn.Op = Ln
			tn.FeatureIdx = featureIdxOf(operand.Children[2].Matched)
		default:
			tn.Op = Bypass
			tn.FeatureIdx = featureIdxOf(operand.Matched)
		}
		if line.Children[4].Children[0].Matched == ">" {
			tn.Comp = GreaterThan
		} else {
			tn.Comp = LessThan
		}
		bias, berr := strconv.ParseFloat(line.Children[5].Matched, 32)
		if berr != nil {
			return nil, fmt.Errorf("tree: bad bias for node %d: %v", idx, berr)
		}
		tn.Bias = float32(bias)
		t.Nodes[idx] = tn
	}
	for idx, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("tree: node %d missing", idx)
		}
	}
	t.Validate()
	return t, nil
}

// featureIdxOf extracts N from "xN" (also accepts a longer match like
// "ln ( x3 )" and takes the part after the last 'x').
func featureIdxOf(m string) int64 {
	m = m[strings.LastIndexByte(m, 'x')+1:]
	m = strings.TrimFunc(m, func(r rune) bool { return r < '0' || r > '9' })
	return int64(mustAtoi(m))
}

func mustAtoi(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		panic(err)
	}
	return v
}

// FormatTree renders a tree back into the text format.
func FormatTree(t *DecisionTree) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tree depth %d features %d {\n", t.Depth, t.Features)
	for i, n := range t.Nodes {
		operand := fmt.Sprintf("x%d", n.FeatureIdx)
		switch n.Op {
		case Sqrt:
			operand = "sqrt(" + operand + ")"
		case Ln:
			operand = "ln(" + operand + ")"
		}
		fmt.Fprintf(&b, "\tnode %d: %s %s %v\n", i, operand, n.Comp.String(), n.Bias)
	}
	b.WriteString("}\n")
	return b.String()
}
