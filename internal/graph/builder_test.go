package graph

import (
	"testing"

	"github.com/vanillabrand/fandom-velocity/internal/models"
)

func profiles() []map[string]interface{} {
	return []map[string]interface{}{
		{"username": "alpha", "followersCount": 1200.0},
		{"username": "beta", "followersCount": 300.0},
	}
}

func TestBuildGraphRootsOnly(t *testing.T) {
	b := NewBuilder(nil)

	g, err := b.BuildGraph(profiles(), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(g.Nodes) != 2 || len(g.Links) != 0 {
		t.Errorf("nodes=%d links=%d, want 2/0", len(g.Nodes), len(g.Links))
	}
	if g.Nodes[0].Kind != models.NodeRoot || g.Nodes[0].Weight != 1200 {
		t.Errorf("unexpected root node: %+v", g.Nodes[0])
	}
}

func TestBuildGraphWithSegments(t *testing.T) {
	b := NewBuilder(nil)
	analysis := &models.AnalysisResult{
		Summary: "summary",
		Segments: []models.SegmentScore{
			{Label: "gaming", Score: 0.7},
			{Label: "music", Score: 0.3},
		},
	}

	g, err := b.BuildGraph(profiles(), analysis)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// 2 roots + 2 clusters, each cluster linked to each root.
	if len(g.Nodes) != 4 {
		t.Errorf("nodes = %d, want 4", len(g.Nodes))
	}
	if len(g.Links) != 4 {
		t.Errorf("links = %d, want 4", len(g.Links))
	}
}

func TestBuildGraphEmptyInput(t *testing.T) {
	b := NewBuilder(nil)
	if _, err := b.BuildGraph(nil, nil); err == nil {
		t.Fatal("expected error for zero profiles")
	}
}

func TestWalkVisitsAllNodes(t *testing.T) {
	g := &models.Graph{
		Nodes: []models.GraphNode{
			{
				ID:   "root:alpha",
				Kind: models.NodeRoot,
				Children: []models.GraphNode{
					{ID: "cluster:gaming", Kind: models.NodeCluster, Children: []models.GraphNode{
						{ID: "leaf:fan1", Kind: models.NodeLeaf},
					}},
					{ID: "weird", Kind: "something-else"},
				},
			},
		},
	}

	visited := map[string]int{}
	kinds := map[string]models.NodeKind{}
	Walk(g, func(node *models.GraphNode, depth int) {
		visited[node.ID] = depth
		kinds[node.ID] = node.Kind
	})

	if len(visited) != 4 {
		t.Fatalf("visited %d nodes, want 4", len(visited))
	}
	if visited["root:alpha"] != 0 || visited["cluster:gaming"] != 1 || visited["leaf:fan1"] != 2 {
		t.Errorf("unexpected depths: %v", visited)
	}
	// Unrecognized kinds are normalized, never dropped.
	if kinds["weird"] != models.NodeUnknown {
		t.Errorf("unknown kind = %s, want %s", kinds["weird"], models.NodeUnknown)
	}
}
