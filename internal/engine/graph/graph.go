// Package graph implements the Dependency Analyzer (C11): a static,
// process-wide directed graph over tool names, with BFS traversal for
// direct/transitive dependencies and dependents, DFS cycle detection,
// and a bounded impact score that cross-references static chains.
//
// The Analyzer is pure: built once from an immutable node set, every
// query is a deterministic function of that snapshot with no I/O.
package graph

import (
	"sort"

	"github.com/aishacrm/braid/internal/engine/core"
)

// Edge runs from a dependency to its dependent.
type Edge struct {
	From string
	To   string
}

// Materialization is the nodes-and-edges view Graph produces.
type Materialization struct {
	Nodes []core.GraphNode
	Edges []Edge
}

// AffectedChain is one static chain's reference to an impacted tool.
type AffectedChain struct {
	ChainName  string
	StepIndex  int
	TotalSteps int
	Required   bool
}

// ImpactReport is the Impact operation's full payload.
type ImpactReport struct {
	Tool           string
	Category       string
	Effects        []core.Effect
	Inputs         []string
	Outputs        []string
	Dependencies   []string
	Dependents     []string
	AffectedChains []AffectedChain
	ImpactScore    int
}

// CycleReport is the DetectCycles operation's payload.
type CycleReport struct {
	HasCircular bool
	Cycles      [][]string
}

// chainStep is the minimal shape the Analyzer needs out of a chain
// definition to cross-reference tool impact, decoupling this package
// from the chain package's full executor/registry machinery.
type chainStep struct {
	Tool     string
	Required bool
}

// ChainRef is the subset of a chain definition the Analyzer consults.
type ChainRef struct {
	Name    string
	Dynamic bool
	Steps   []chainStep
}

// NewChainRef builds a ChainRef from a chain name/dynamic flag and the
// tool name + required flag of each of its static steps, in order.
func NewChainRef(name string, dynamic bool, steps []core.Step) ChainRef {
	s := make([]chainStep, len(steps))
	for i, step := range steps {
		s[i] = chainStep{Tool: step.Tool, Required: step.Required}
	}
	return ChainRef{Name: name, Dynamic: dynamic, Steps: s}
}

// Analyzer holds an immutable snapshot of the tool dependency graph and
// the static chains that reference it.
type Analyzer struct {
	nodes      map[string]core.GraphNode
	order      []string // node names in construction order, for deterministic iteration
	dependents map[string][]string
	chains     []ChainRef
}

// New builds an Analyzer from nodes (the static dependency graph) and
// chains (every registered chain, static and dynamic alike; dynamic
// chains are ignored by Impact since their steps aren't known until
// generated at run time).
func New(nodes []core.GraphNode, chains []ChainRef) *Analyzer {
	a := &Analyzer{
		nodes:      make(map[string]core.GraphNode, len(nodes)),
		dependents: make(map[string][]string),
		chains:     chains,
	}
	for _, n := range nodes {
		a.nodes[n.Name] = n
		a.order = append(a.order, n.Name)
	}
	for _, n := range nodes {
		for _, dep := range n.Dependencies {
			a.dependents[dep] = append(a.dependents[dep], n.Name)
		}
	}
	for dep := range a.dependents {
		sort.Strings(a.dependents[dep])
	}
	return a
}

// Dependencies returns name's direct dependencies and every distinct
// transitive dependency beyond that, via BFS on the dependencies edges.
// name itself is never included in either list.
func (a *Analyzer) Dependencies(name string) (direct, transitive []string) {
	node, ok := a.nodes[name]
	if !ok {
		return nil, nil
	}
	direct = append([]string(nil), node.Dependencies...)
	transitive = a.bfs(direct, name, func(n string) []string { return a.nodes[n].Dependencies })
	return direct, transitive
}

// Dependents returns name's direct dependents and every distinct
// transitive dependent beyond that, via BFS on the reverse edge set.
func (a *Analyzer) Dependents(name string) (direct, transitive []string) {
	direct = append([]string(nil), a.dependents[name]...)
	transitive = a.bfs(direct, name, func(n string) []string { return a.dependents[n] })
	return direct, transitive
}

// bfs explores every node reachable from seeds (already one hop out from
// origin) via next, and returns the nodes discovered strictly beyond
// seeds: i.e. the transitive-only set, excluding origin and excluding
// anything already in seeds.
func (a *Analyzer) bfs(seeds []string, origin string, next func(string) []string) []string {
	seen := map[string]bool{origin: true}
	for _, s := range seeds {
		seen[s] = true
	}
	queue := append([]string(nil), seeds...)
	var transitive []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range next(cur) {
			if seen[n] {
				continue
			}
			seen[n] = true
			transitive = append(transitive, n)
			queue = append(queue, n)
		}
	}
	sort.Strings(transitive)
	return transitive
}

// GraphOptions selects Graph's output shape.
type GraphOptions struct {
	Category string // if non-empty, restricts nodes to this category
	Format   string // "nodes-edges" (default) or "adjacency"
}

const FormatAdjacency = "adjacency"

// Graph materializes the node and edge set, in construction order.
// With Category set, only nodes of that category are included, and any
// edge whose endpoint falls outside the filter is elided.
func (a *Analyzer) Graph(opts GraphOptions) Materialization {
	var nodes []core.GraphNode
	included := make(map[string]bool, len(a.nodes))
	for _, name := range a.order {
		n := a.nodes[name]
		if opts.Category != "" && n.Category != opts.Category {
			continue
		}
		nodes = append(nodes, n)
		included[name] = true
	}

	var edges []Edge
	for _, name := range a.order {
		n := a.nodes[name]
		for _, dep := range n.Dependencies {
			if opts.Category != "" && (!included[dep] || !included[name]) {
				continue
			}
			edges = append(edges, Edge{From: dep, To: name})
		}
	}

	return Materialization{Nodes: nodes, Edges: edges}
}

// Adjacency renders a materialization as an adjacency list keyed by
// dependency name, values being its direct dependents in graph order.
func Adjacency(m Materialization) map[string][]string {
	adj := make(map[string][]string)
	for _, e := range m.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	return adj
}

// DetectCycles runs DFS with an explicit recursion stack over the
// dependencies edges. A revisit of a node still on the stack records
// the cycle as the path slice starting at that node's first occurrence.
func (a *Analyzer) DetectCycles() CycleReport {
	const (
		unvisited = 0
		onStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(a.nodes))
	var path []string
	pathIndex := make(map[string]int)
	var cycles [][]string

	var visit func(name string)
	visit = func(name string) {
		state[name] = onStack
		path = append(path, name)
		pathIndex[name] = len(path) - 1

		for _, dep := range a.nodes[name].Dependencies {
			switch state[dep] {
			case onStack:
				start := pathIndex[dep]
				cycle := append([]string(nil), path[start:]...)
				cycle = append(cycle, dep)
				cycles = append(cycles, cycle)
			case unvisited:
				visit(dep)
			}
		}

		path = path[:len(path)-1]
		delete(pathIndex, name)
		state[name] = done
	}

	for _, name := range a.order {
		if state[name] == unvisited {
			visit(name)
		}
	}

	return CycleReport{HasCircular: len(cycles) > 0, Cycles: cycles}
}

// Impact scores name's criticality. Score = min(100, 15*|direct
// dependents| + 5*|transitive dependents| + 10*|affected chains| +
// 5*|required affected chains|).
func (a *Analyzer) Impact(name string) (ImpactReport, bool) {
	node, ok := a.nodes[name]
	if !ok {
		return ImpactReport{}, false
	}

	deps, transDeps := a.Dependencies(name)
	directDependents, transDependents := a.Dependents(name)

	var affected []AffectedChain
	requiredCount := 0
	for _, c := range a.chains {
		if c.Dynamic {
			continue
		}
		for i, step := range c.Steps {
			if step.Tool != name {
				continue
			}
			affected = append(affected, AffectedChain{
				ChainName: c.Name, StepIndex: i, TotalSteps: len(c.Steps), Required: step.Required,
			})
			if step.Required {
				requiredCount++
			}
		}
	}

	score := 15*len(directDependents) + 5*len(transDependents) + 10*len(affected) + 5*requiredCount
	if score > 100 {
		score = 100
	}

	return ImpactReport{
		Tool:           name,
		Category:       node.Category,
		Effects:        node.Effects,
		Inputs:         node.Inputs,
		Outputs:        node.Outputs,
		Dependencies:   append(deps, transDeps...),
		Dependents:     append(directDependents, transDependents...),
		AffectedChains: affected,
		ImpactScore:    score,
	}, true
}
