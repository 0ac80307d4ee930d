package workflow

// Validate checks the referential invariants of a workflow definition:
// unique node and edge ids, known node types with matching configuration,
// and edges whose endpoints exist.
func Validate(wf *Workflow) error {
	if wf == nil {
		return graphErr(CodeInvalidNode, "", "workflow is nil")
	}

	nodeIDs := make(map[string]bool, len(wf.Nodes))
	for _, n := range wf.Nodes {
		if n.ID == "" {
			return graphErr(CodeInvalidNode, "", "node id is required")
		}
		if nodeIDs[n.ID] {
			return graphErr(CodeDuplicateID, n.ID, "node id is not unique")
		}
		nodeIDs[n.ID] = true
		if !n.Type.Valid() {
			return graphErr(CodeInvalidNode, n.ID, "unknown node type %q", n.Type)
		}
		if n.Status != "" && !n.Status.Valid() {
			return graphErr(CodeInvalidNode, n.ID, "unknown status %q", n.Status)
		}
		if n.Config != nil && n.Config.NodeType() != n.Type {
			return graphErr(CodeConfigMismatch, n.ID, "node is %s, config is for %s", n.Type, n.Config.NodeType())
		}
	}

	edgeIDs := make(map[string]bool, len(wf.Edges))
	for _, e := range wf.Edges {
		if e.ID == "" {
			return graphErr(CodeInvalidConnection, "", "edge id is required")
		}
		if edgeIDs[e.ID] {
			return graphErr(CodeDuplicateID, e.ID, "edge id is not unique")
		}
		edgeIDs[e.ID] = true
		if !nodeIDs[e.Source] || !nodeIDs[e.Target] {
			return graphErr(CodeInvalidConnection, e.ID, "edge %s -> %s references a missing node", e.Source, e.Target)
		}
	}
	return nil
}
