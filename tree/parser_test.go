package tree

import (
	"testing"
)

const sampleTree = `
tree depth 2 features 3 {
	node 0: x0 > 0.5
	node 1: sqrt(x1) > 0.25
	node 2: ln(x2) < -0.69
}
`

func TestParseTree(t *testing.T) {
	tr, err := ParseTree(sampleTree)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Depth != 2 || tr.Features != 3 || len(tr.Nodes) != 3 {
		t.Fatalf("wrong shape: %+v", tr)
	}
	if tr.Nodes[0].Op != Bypass || tr.Nodes[0].Comp != GreaterThan || tr.Nodes[0].FeatureIdx != 0 || tr.Nodes[0].Bias != 0.5 {
		t.Errorf("node 0 parsed wrong: %+v", tr.Nodes[0])
	}
	if tr.Nodes[1].Op != Sqrt || tr.Nodes[1].FeatureIdx != 1 || tr.Nodes[1].Bias != 0.25 {
		t.Errorf("node 1 parsed wrong: %+v", tr.Nodes[1])
	}
	if tr.Nodes[2].Op != Ln || tr.Nodes[2].Comp != LessThan || tr.Nodes[2].FeatureIdx != 2 {
		t.Errorf("node 2 parsed wrong: %+v", tr.Nodes[2])
	}
	if tr.Nodes[2].Bias != -0.69 {
		t.Errorf("node 2 bias parsed wrong: %v", tr.Nodes[2].Bias)
	}
}

func TestParseTreeRoundTrip(t *testing.T) {
	tr, err := ParseTree(sampleTree)
	if err != nil {
		t.Fatal(err)
	}
	tr2, err := ParseTree(FormatTree(tr))
	if err != nil {
		t.Fatal(err)
	}
	for i := range tr.Nodes {
		if tr.Nodes[i] != tr2.Nodes[i] {
			t.Errorf("node %d does not round trip: %+v vs %+v", i, tr.Nodes[i], tr2.Nodes[i])
		}
	}
}

func TestParseTreeErrors(t *testing.T) {
	cases := map[string]string{
		"missing node": `tree depth 2 features 1 {
			node 0: x0 < 0.5
			node 2: x0 < 0.5
		}`,
		"duplicate node": `tree depth 1 features 1 {
			node 0: x0 < 0.5
			node 0: x0 > 0.5
		}`,
		"index out of range": `tree depth 1 features 1 {
			node 5: x0 < 0.5
		}`,
		"feature out of range": `tree depth 1 features 1 {
			node 0: x7 < 0.5
		}`,
		"garbage": `hello world`,
	}
	for name, src := range cases {
		if _, err := ParseTree(src); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestRecordRoundTrip(t *testing.T) {
	tr := NewRandomTree(3, 4, 99)
	record := tr.MarshalRecord()
	if !tr.MatchesRecord(record) {
		t.Error("record does not match its own tree")
	}
	tr2, err := UnmarshalRecord(record)
	if err != nil {
		t.Fatal(err)
	}
	for i := range tr.Nodes {
		if tr.Nodes[i] != tr2.Nodes[i] {
			t.Errorf("node %d does not survive the record", i)
		}
	}

	other := NewRandomTree(3, 4, 100)
	if other.MatchesRecord(record) {
		t.Error("record matches a different tree")
	}
}
