package models

// NodeKind is the closed set of node shapes a graph can contain. Consumers
// traverse with a visitor over these variants; anything unrecognized is
// carried as NodeUnknown rather than probed ad hoc.
type NodeKind string

const (
	NodeRoot    NodeKind = "root"    // the analyzed account itself
	NodeCluster NodeKind = "cluster" // a grouped audience segment
	NodeLeaf    NodeKind = "leaf"    // an individual follower profile
	NodeUnknown NodeKind = "unknown"
)

// GraphNode is one node of the audience graph.
type GraphNode struct {
	ID       string      `json:"id"`
	Kind     NodeKind    `json:"kind"`
	Label    string      `json:"label"`
	Weight   float64     `json:"weight"`
	Children []GraphNode `json:"children,omitempty"`
}

// GraphLink connects two nodes by ID.
type GraphLink struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// Graph is the presentation structure produced by the graph builder.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}
