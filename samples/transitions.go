package samples

import (
	"fmt"

	"github.com/dominikbraun/graph"
	"github.com/eapache/queue"

	"github.com/pathline/lis/config"
	"github.com/pathline/lis/errors"
)

// Workflow validates user requested status changes against the specimen workflow
//
//	Pending -> Collected -> Processing -> Approved -> Completed -> Delivered
//	                                      Approved -> Delivered
//
// permissive accepts any known status, forward accepts any status reachable from the
// current one and strict accepts only direct successors.
type Workflow struct {
	mode  string
	graph graph.Graph[string, string]
}

func NewWorkflow(cfg *config.Config) (*Workflow, error) {
	return NewWorkflowWithMode(cfg.TransitionMode)
}

func NewWorkflowWithMode(mode string) (*Workflow, error) {
	switch mode {
	case config.TransitionModePermissive, config.TransitionModeForward, config.TransitionModeStrict:
	default:
		return nil, fmt.Errorf("unknown transition mode %q", mode)
	}

	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	for _, s := range Statuses {
		if err := g.AddVertex(string(s)); err != nil {
			return nil, err
		}
	}

	edges := [][2]Status{
		{StatusPending, StatusCollected},
		{StatusCollected, StatusProcessing},
		{StatusProcessing, StatusApproved},
		{StatusApproved, StatusCompleted},
		{StatusApproved, StatusDelivered},
		{StatusCompleted, StatusDelivered},
	}
	for _, e := range edges {
		if err := g.AddEdge(string(e[0]), string(e[1])); err != nil {
			return nil, err
		}
	}

	return &Workflow{mode: mode, graph: g}, nil
}

func (w *Workflow) Mode() string {
	return w.mode
}

// Validate returns a validation error when moving from one status to another is not
// allowed. Staying in the same status is always allowed.
func (w *Workflow) Validate(from, to Status) error {
	if !to.Valid() {
		return errors.Validation(fmt.Sprintf("Invalid sample status %q", to))
	}
	if from == to || w.mode == config.TransitionModePermissive {
		return nil
	}

	allowed := false
	switch w.mode {
	case config.TransitionModeStrict:
		_, err := w.graph.Edge(string(from), string(to))
		allowed = err == nil
	case config.TransitionModeForward:
		for _, s := range w.Reachable(from) {
			if s == to {
				allowed = true
				break
			}
		}
	}

	if !allowed {
		return errors.Validation(fmt.Sprintf("Cannot move sample from %s to %s", from, to))
	}
	return nil
}

// Reachable lists the statuses that can be reached from the given one in breadth first
// order, excluding the status itself.
func (w *Workflow) Reachable(from Status) []Status {
	adjacency, err := w.graph.AdjacencyMap()
	if err != nil {
		return nil
	}
	if _, ok := adjacency[string(from)]; !ok {
		return nil
	}

	visited := map[string]bool{string(from): true}
	reachable := make([]Status, 0, len(adjacency))

	q := queue.New()
	q.Add(string(from))
	for q.Length() > 0 {
		current := q.Remove().(string)
		for _, next := range w.successors(adjacency, current) {
			if visited[next] {
				continue
			}
			visited[next] = true
			reachable = append(reachable, Status(next))
			q.Add(next)
		}
	}
	return reachable
}

// successors returns the direct successors of a vertex in workflow order so that
// traversal is deterministic.
func (w *Workflow) successors(adjacency map[string]map[string]graph.Edge[string], vertex string) []string {
	next := make([]string, 0, len(adjacency[vertex]))
	for _, s := range Statuses {
		if _, ok := adjacency[vertex][string(s)]; ok {
			next = append(next, string(s))
		}
	}
	return next
}
