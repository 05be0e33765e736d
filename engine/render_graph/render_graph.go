package render_graph

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/ecs"
	log "github.com/sirupsen/logrus"
)

// Label names a node or a sub-graph.
type Label string

// Graph construction and execution errors.
var (
	// ErrDuplicateNode is returned when a label is added twice to the same graph.
	ErrDuplicateNode = errors.New("render_graph: node already exists")

	// ErrUnknownNode is returned when an edge references a label the graph does not contain.
	ErrUnknownNode = errors.New("render_graph: unknown node")

	// ErrDuplicateSubGraph is returned when a sub-graph label is added twice.
	ErrDuplicateSubGraph = errors.New("render_graph: sub-graph already exists")

	// ErrUnknownSubGraph is returned when a node queues a sub-graph that does not exist.
	ErrUnknownSubGraph = errors.New("render_graph: unknown sub-graph")

	// ErrCycle is returned when the node edges do not form a DAG.
	ErrCycle = errors.New("render_graph: edges form a cycle")
)

// Node is one unit of per-frame command recording.
type Node interface {
	// Update runs once per frame before any node of the graph runs. Nodes
	// refresh cached world state (query bookkeeping) here.
	//
	// Parameters:
	//   - world: the render world
	Update(world *ecs.World)

	// Run records the node's commands.
	//
	// Parameters:
	//   - graphCtx: the graph context, used to queue sub-graphs
	//   - renderCtx: the render context holding the device and command encoder
	//   - world: the render world
	//
	// Returns:
	//   - error: aborts the frame when non-nil
	Run(graphCtx *Context, renderCtx *RenderContext, world *ecs.World) error
}

// EmptyNode records nothing. It marks ordering points such as the start and end of a pass.
type EmptyNode struct{}

var _ Node = EmptyNode{}

func (EmptyNode) Update(*ecs.World) {}

func (EmptyNode) Run(*Context, *RenderContext, *ecs.World) error { return nil }

// RenderGraph is a DAG of nodes plus named sub-graphs that nodes can run.
type RenderGraph interface {
	// Name returns the graph name used in logs and errors.
	Name() string

	// AddNode adds a node under label.
	//
	// Parameters:
	//   - label: unique node label within this graph
	//   - node: the node
	//
	// Returns:
	//   - error: ErrDuplicateNode if label is taken
	AddNode(label Label, node Node) error

	// AddNodeEdge orders from before to. Adding an existing edge again is a no-op.
	//
	// Parameters:
	//   - from: the label that must run first
	//   - to: the label that must run after from
	//
	// Returns:
	//   - error: ErrUnknownNode if either label is missing
	AddNodeEdge(from, to Label) error

	// Node returns the node under label.
	Node(label Label) (Node, bool)

	// AddSubGraph registers sub under label.
	//
	// Parameters:
	//   - label: unique sub-graph label within this graph
	//   - sub: the sub-graph
	//
	// Returns:
	//   - error: ErrDuplicateSubGraph if label is taken
	AddSubGraph(label Label, sub RenderGraph) error

	// SubGraph returns the sub-graph registered under label.
	SubGraph(label Label) (RenderGraph, bool)

	// Order returns the node labels in execution order: topological, ties
	// broken by insertion order.
	//
	// Returns:
	//   - []Label: the execution order
	//   - error: ErrCycle if the edges are cyclic
	Order() ([]Label, error)

	// Update calls Update on every node of this graph and of its sub-graphs.
	//
	// Parameters:
	//   - world: the render world
	Update(world *ecs.World)

	// Run executes the nodes in Order, then after each node any sub-graphs it queued.
	//
	// Parameters:
	//   - renderCtx: the render context
	//   - world: the render world
	//
	// Returns:
	//   - error: the first node error, wrapped with the node label
	Run(renderCtx *RenderContext, world *ecs.World) error
}

type edge struct {
	from, to int
}

type renderGraph struct {
	mu        *sync.RWMutex
	name      string
	labels    []Label
	nodes     map[Label]int
	impls     []Node
	edges     []edge
	subGraphs map[Label]RenderGraph
}

var _ RenderGraph = &renderGraph{}

// NewRenderGraph creates an empty graph.
//
// Parameters:
//   - options: functional options applied to the graph
//
// Returns:
//   - RenderGraph: the new graph
func NewRenderGraph(options ...RenderGraphBuilderOption) RenderGraph {
	g := &renderGraph{
		mu:        &sync.RWMutex{},
		name:      "main",
		nodes:     map[Label]int{},
		subGraphs: map[Label]RenderGraph{},
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *renderGraph) Name() string {
	return g.name
}

func (g *renderGraph) AddNode(label Label, node Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[label]; ok {
		return fmt.Errorf("%w: %q in graph %q", ErrDuplicateNode, label, g.name)
	}
	g.nodes[label] = len(g.impls)
	g.labels = append(g.labels, label)
	g.impls = append(g.impls, node)
	return nil
}

func (g *renderGraph) AddNodeEdge(from, to Label) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	f, ok := g.nodes[from]
	if !ok {
		return fmt.Errorf("%w: %q in graph %q", ErrUnknownNode, from, g.name)
	}
	t, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("%w: %q in graph %q", ErrUnknownNode, to, g.name)
	}
	e := edge{from: f, to: t}
	if !slices.Contains(g.edges, e) {
		g.edges = append(g.edges, e)
	}
	return nil
}

func (g *renderGraph) Node(label Label) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	i, ok := g.nodes[label]
	if !ok {
		return nil, false
	}
	return g.impls[i], true
}

func (g *renderGraph) AddSubGraph(label Label, sub RenderGraph) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.subGraphs[label]; ok {
		return fmt.Errorf("%w: %q in graph %q", ErrDuplicateSubGraph, label, g.name)
	}
	g.subGraphs[label] = sub
	return nil
}

func (g *renderGraph) SubGraph(label Label) (RenderGraph, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sub, ok := g.subGraphs[label]
	return sub, ok
}

func (g *renderGraph) Order() ([]Label, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	idx, err := g.order()
	if err != nil {
		return nil, err
	}
	out := make([]Label, len(idx))
	for i, n := range idx {
		out[i] = g.labels[n]
	}
	return out, nil
}

// order is Kahn's algorithm that always takes the earliest-inserted ready node.
func (g *renderGraph) order() ([]int, error) {
	n := len(g.impls)
	inDegree := make([]int, n)
	for _, e := range g.edges {
		inDegree[e.to]++
	}

	done := make([]bool, n)
	out := make([]int, 0, n)
	for len(out) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, fmt.Errorf("%w: graph %q", ErrCycle, g.name)
		}
		done[next] = true
		out = append(out, next)
		for _, e := range g.edges {
			if e.from == next {
				inDegree[e.to]--
			}
		}
	}
	return out, nil
}

func (g *renderGraph) Update(world *ecs.World) {
	g.mu.RLock()
	impls := slices.Clone(g.impls)
	subs := make([]RenderGraph, 0, len(g.subGraphs))
	for _, sub := range g.subGraphs {
		subs = append(subs, sub)
	}
	g.mu.RUnlock()

	for _, node := range impls {
		node.Update(world)
	}
	for _, sub := range subs {
		sub.Update(world)
	}
}

func (g *renderGraph) Run(renderCtx *RenderContext, world *ecs.World) error {
	return g.run(g, renderCtx, world, subGraphRun{})
}

// run executes g for the view in in, resolving queued sub-graphs against root first and then g.
func (g *renderGraph) run(root RenderGraph, renderCtx *RenderContext, world *ecs.World, in subGraphRun) error {
	g.mu.RLock()
	order, err := g.order()
	labels := slices.Clone(g.labels)
	impls := slices.Clone(g.impls)
	g.mu.RUnlock()
	if err != nil {
		return err
	}

	entry := log.WithFields(log.Fields{
		"component": "render_graph",
		"graph":     g.name,
	})

	for _, i := range order {
		label := labels[i]
		entry.WithField("node", label).Trace("running node")

		graphCtx := &Context{node: label, view: in.view, hasView: in.hasView}
		if err := impls[i].Run(graphCtx, renderCtx, world); err != nil {
			return fmt.Errorf("graph %q node %q: %w", g.name, label, err)
		}

		for _, queued := range graphCtx.queued {
			sub, ok := root.SubGraph(queued.label)
			if !ok {
				sub, ok = g.SubGraph(queued.label)
			}
			if !ok {
				return fmt.Errorf("%w: %q queued by node %q", ErrUnknownSubGraph, queued.label, label)
			}
			if err := runSubGraph(root, sub, renderCtx, world, queued); err != nil {
				return err
			}
		}
	}
	return nil
}

func runSubGraph(root, sub RenderGraph, renderCtx *RenderContext, world *ecs.World, in subGraphRun) error {
	if rg, ok := sub.(*renderGraph); ok {
		return rg.run(root, renderCtx, world, in)
	}
	return sub.Run(renderCtx, world)
}
