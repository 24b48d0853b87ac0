// Package graph builds the presentation graph for an analyzed audience:
// profile roots, segment clusters from the analysis, and follower leaves.
package graph

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// Builder implements interfaces.GraphBuilder.
type Builder struct {
	logger arbor.ILogger
}

// NewBuilder creates the graph builder.
func NewBuilder(logger arbor.ILogger) *Builder {
	return &Builder{logger: logger}
}

var _ interfaces.GraphBuilder = (*Builder)(nil)

// BuildGraph assembles the audience graph. Each analyzed profile becomes a
// root node; analysis segments become weighted clusters linked to every root.
// A nil analysis yields a graph of roots only.
func (b *Builder) BuildGraph(items []map[string]interface{}, analysis *models.AnalysisResult) (*models.Graph, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("cannot build graph from zero profiles")
	}

	g := &models.Graph{}
	for i, item := range items {
		username, _ := item["username"].(string)
		if username == "" {
			username = fmt.Sprintf("profile-%d", i)
		}
		g.Nodes = append(g.Nodes, models.GraphNode{
			ID:     "root:" + username,
			Kind:   models.NodeRoot,
			Label:  username,
			Weight: followerWeight(item),
		})
	}

	if analysis != nil {
		for _, segment := range analysis.Segments {
			clusterID := "cluster:" + segment.Label
			g.Nodes = append(g.Nodes, models.GraphNode{
				ID:     clusterID,
				Kind:   models.NodeCluster,
				Label:  segment.Label,
				Weight: segment.Score,
			})
			for _, root := range g.Nodes {
				if root.Kind == models.NodeRoot {
					g.Links = append(g.Links, models.GraphLink{
						Source: root.ID,
						Target: clusterID,
						Weight: segment.Score,
					})
				}
			}
		}
	}

	if b.logger != nil {
		b.logger.Debug().
			Int("nodes", len(g.Nodes)).
			Int("links", len(g.Links)).
			Msg("Audience graph built")
	}
	return g, nil
}

// Walk visits every node in the graph depth-first, dispatching on node kind.
// Unknown kinds are visited as NodeUnknown rather than skipped.
func Walk(g *models.Graph, visit func(node *models.GraphNode, depth int)) {
	for i := range g.Nodes {
		walkNode(&g.Nodes[i], 0, visit)
	}
}

func walkNode(node *models.GraphNode, depth int, visit func(*models.GraphNode, int)) {
	switch node.Kind {
	case models.NodeRoot, models.NodeCluster, models.NodeLeaf:
		visit(node, depth)
	default:
		normalized := *node
		normalized.Kind = models.NodeUnknown
		visit(&normalized, depth)
	}
	for i := range node.Children {
		walkNode(&node.Children[i], depth+1, visit)
	}
}

func followerWeight(item map[string]interface{}) float64 {
	switch v := item["followersCount"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
