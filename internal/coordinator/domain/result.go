package domain

// Hit is one scored document returned by a node. Fields are opaque to the
// coordinator; NodeID is attached by the coordinator, not the engine.
type Hit struct {
	Score  float64        `json:"score"`
	NodeID string         `json:"node_id,omitempty"`
	Fields map[string]any `json:"fields"`
}

// SearchResult is the raw answer of one node's search call, before the
// coordinator attaches node identity.
type SearchResult struct {
	Hits      []Hit  `json:"hits"`
	TotalHits uint64 `json:"total_hits"`
	TookMS    uint64 `json:"took_ms"`
}

// NodeResponse is the per-node outcome of one fan-out. Immutable after
// creation. A non-empty Err means the node contributed no hits.
type NodeResponse struct {
	NodeID    string `json:"node_id"`
	TotalHits uint64 `json:"total_hits"`
	Hits      []Hit  `json:"hits,omitempty"`
	TookMS    uint64 `json:"took_ms"`
	Err       string `json:"error,omitempty"`
}

// Failed reports whether the node's call ended in an error.
func (r NodeResponse) Failed() bool {
	return r.Err != ""
}

// AggregateResult is the externally visible answer for one search call.
// Errors lists human-readable failure reasons keyed by node id.
type AggregateResult struct {
	TotalHits     uint64         `json:"total_hits"`
	Hits          []Hit          `json:"hits"`
	TookMS        uint64         `json:"took_ms"`
	NodeResponses []NodeResponse `json:"node_responses"`
	Errors        []string       `json:"errors,omitempty"`
}
