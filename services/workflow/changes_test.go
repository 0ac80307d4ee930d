package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyNodeChanges_Position(t *testing.T) {
	g, _ := testGraph(t)

	nodes, err := g.ApplyNodeChanges([]NodeChange{
		{Type: ChangePosition, ID: "b", Position: &Position{X: 300, Y: 40}},
	})

	require.NoError(t, err)
	assert.Equal(t, Position{X: 300, Y: 40}, nodes[1].Position)
	stored, _ := g.Node("b")
	assert.Equal(t, Position{X: 300, Y: 40}, stored.Position)
}

func TestApplyNodeChanges_RemoveCascades(t *testing.T) {
	g, _ := testGraph(t)

	nodes, err := g.ApplyNodeChanges([]NodeChange{{Type: ChangeRemove, ID: "a"}})

	require.NoError(t, err)
	assert.Len(t, nodes, 2)
	assert.Equal(t, []string{"bc"}, edgeIDs(g.Edges()))
}

func TestApplyNodeChanges_Add(t *testing.T) {
	g, _ := testGraph(t)

	nodes, err := g.ApplyNodeChanges([]NodeChange{
		{Type: ChangeAdd, Item: &Node{ID: "d", Type: Schedule, Status: StatusSuccess}},
	})

	require.NoError(t, err)
	require.Len(t, nodes, 4)
	assert.Equal(t, ScheduleConfig{}, nodes[3].Config)
	assert.Equal(t, StatusInitial, nodes[3].Status)
}

func TestApplyNodeChanges_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		changes []NodeChange
		want    error
	}{
		{"duplicate add", []NodeChange{{Type: ChangeAdd, Item: &Node{ID: "a", Type: ManualTrigger}}}, ErrDuplicateID},
		{"add without id", []NodeChange{{Type: ChangeAdd, Item: &Node{Type: ManualTrigger}}}, ErrInvalidNode},
		{"add unknown type", []NodeChange{{Type: ChangeAdd, Item: &Node{ID: "d", Type: "ftp"}}}, ErrInvalidNode},
		{"add mismatched config", []NodeChange{{Type: ChangeAdd, Item: &Node{ID: "d", Type: EmailSend, Config: WebhookConfig{}}}}, ErrConfigMismatch},
		{"move unknown", []NodeChange{{Type: ChangePosition, ID: "x"}}, ErrUnknownNode},
		{"remove twice", []NodeChange{{Type: ChangeRemove, ID: "a"}, {Type: ChangeRemove, ID: "a"}}, ErrUnknownNode},
		{"unsupported", []NodeChange{{Type: "dimensions", ID: "a"}}, ErrInvalidNode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, tracker := testGraph(t)
			before, beforeEdges := g.Snapshot()

			_, err := g.ApplyNodeChanges(tt.changes)

			require.ErrorIs(t, err, tt.want)
			after, afterEdges := g.Snapshot()
			assert.Equal(t, before, after)
			assert.Equal(t, beforeEdges, afterEdges)
			assert.False(t, tracker.IsDirty())
		})
	}
}

func TestApplyNodeChanges_EmptyBatch(t *testing.T) {
	g, tracker := testGraph(t)

	nodes, err := g.ApplyNodeChanges(nil)

	require.NoError(t, err)
	assert.Len(t, nodes, 3)
	assert.False(t, tracker.IsDirty())
}

func TestApplyEdgeChanges(t *testing.T) {
	g, _ := testGraph(t)

	edges, err := g.ApplyEdgeChanges([]EdgeChange{
		{Type: ChangeRemove, ID: "ac"},
		{Type: ChangeAdd, Item: &Edge{ID: "ca", Source: "c", Target: "a"}},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "bc", "ca"}, edgeIDs(edges))
}

func TestApplyEdgeChanges_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		changes []EdgeChange
		want    error
	}{
		{"remove unknown", []EdgeChange{{Type: ChangeRemove, ID: "zz"}}, ErrUnknownEdge},
		{"select unknown", []EdgeChange{{Type: ChangeSelect, ID: "zz", Selected: true}}, ErrUnknownEdge},
		{"add dangling", []EdgeChange{{Type: ChangeAdd, Item: &Edge{ID: "e", Source: "a", Target: "zz"}}}, ErrInvalidConnection},
		{"add duplicate id", []EdgeChange{{Type: ChangeAdd, Item: &Edge{ID: "ab", Source: "a", Target: "c"}}}, ErrDuplicateID},
		{"add without id", []EdgeChange{{Type: ChangeAdd, Item: &Edge{Source: "a", Target: "c"}}}, ErrInvalidConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, tracker := testGraph(t)

			_, err := g.ApplyEdgeChanges(append([]EdgeChange{{Type: ChangeRemove, ID: "bc"}}, tt.changes...))

			require.ErrorIs(t, err, tt.want)
			assert.Len(t, g.Edges(), 3)
			assert.False(t, tracker.IsDirty())
		})
	}
}
