// Package depgraph validates dependencies across a set of documents.
package depgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jywlabs/prdforge/internal/enhance"
	"github.com/jywlabs/prdforge/internal/prd"
	"github.com/jywlabs/prdforge/internal/score"
)

// Graph is a directed graph of document ids. An edge A -> B means A depends on B.
type Graph struct {
	nodes map[string]bool
	edges map[string][]string
	// via records the task references that produced an edge, keyed "from->to".
	via map[string][]string
}

// Build creates the graph for a document set. Edges come from each
// document's declared dependencies and from task dependencies of the form
// "<docID>:<taskID>".
func Build(docs []*prd.Document) *Graph {
	g := &Graph{
		nodes: make(map[string]bool, len(docs)),
		edges: make(map[string][]string),
		via:   make(map[string][]string),
	}
	for _, d := range docs {
		g.nodes[d.ID] = true
	}

	for _, d := range docs {
		for _, dep := range d.DependsOn() {
			g.addEdge(d.ID, strings.TrimSpace(dep), "")
		}
		for _, p := range d.Phases {
			for _, t := range p.Tasks {
				for _, ref := range t.DependsOn {
					docID, taskID, ok := strings.Cut(ref, ":")
					if !ok || docID == "" || docID == d.ID {
						continue
					}
					g.addEdge(d.ID, docID, t.ID+" -> "+taskID)
				}
			}
		}
	}

	for from := range g.edges {
		sort.Strings(g.edges[from])
	}
	return g
}

func (g *Graph) addEdge(from, to, via string) {
	if to == "" {
		return
	}
	key := from + "->" + to
	if via != "" {
		g.via[key] = append(g.via[key], via)
	}
	for _, existing := range g.edges[from] {
		if existing == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// Nodes returns the document ids in sorted order.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Edges returns the sorted dependencies of id.
func (g *Graph) Edges(id string) []string {
	return append([]string(nil), g.edges[id]...)
}

// MissingDependency is an edge whose target is not in the set.
type MissingDependency struct {
	From string `json:"from"`
	To   string `json:"to"`
	// Via lists task references that produced the edge, if any.
	Via []string `json:"via,omitempty"`
}

func (m MissingDependency) String() string {
	return fmt.Sprintf("%s depends on missing document %s", m.From, m.To)
}

// CircularDependency names the edge that closed a cycle and the cycle path.
type CircularDependency struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Path []string `json:"path"`
}

func (c CircularDependency) String() string {
	return "circular dependency: " + strings.Join(c.Path, " -> ")
}

// Report is the outcome of dependency validation.
type Report struct {
	MissingDependencies  []MissingDependency  `json:"missingDependencies"`
	CircularDependencies []CircularDependency `json:"circularDependencies"`
	// DuplicateIDs lists document ids used by more than one document.
	DuplicateIDs []string `json:"duplicateIds,omitempty"`
}

// OK reports whether there are no missing targets and no cycles.
func (r Report) OK() bool {
	return len(r.MissingDependencies) == 0 && len(r.CircularDependencies) == 0
}

// Validate builds the graph for docs and reports missing targets and cycles.
// The documents are not modified.
func Validate(docs []*prd.Document) Report {
	g := Build(docs)

	var r Report
	for _, from := range g.Nodes() {
		for _, to := range g.edges[from] {
			if !g.nodes[to] {
				r.MissingDependencies = append(r.MissingDependencies, MissingDependency{
					From: from,
					To:   to,
					Via:  g.via[from+"->"+to],
				})
			}
		}
	}
	r.CircularDependencies = g.Cycles()

	seen := make(map[string]int)
	for _, d := range docs {
		seen[d.ID]++
	}
	for id, n := range seen {
		if n > 1 {
			r.DuplicateIDs = append(r.DuplicateIDs, id)
		}
	}
	sort.Strings(r.DuplicateIDs)
	return r
}

type frame struct {
	node string
	next int
}

// Cycles runs an iterative depth-first search from every unvisited node in
// sorted order and reports each back edge with the cycle it closes.
func (g *Graph) Cycles() []CircularDependency {
	var cycles []CircularDependency
	visited := make(map[string]bool, len(g.nodes))
	onStack := make(map[string]bool)

	for _, start := range g.Nodes() {
		if visited[start] {
			continue
		}

		stack := []frame{{node: start}}
		visited[start] = true
		onStack[start] = true

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := g.edges[top.node]

			if top.next >= len(children) {
				onStack[top.node] = false
				stack = stack[:len(stack)-1]
				continue
			}

			child := children[top.next]
			top.next++

			if !g.nodes[child] {
				continue
			}
			if onStack[child] {
				cycles = append(cycles, CircularDependency{
					From: top.node,
					To:   child,
					Path: cyclePath(stack, child),
				})
				continue
			}
			if !visited[child] {
				visited[child] = true
				onStack[child] = true
				stack = append(stack, frame{node: child})
			}
		}
	}
	return cycles
}

// cyclePath returns the stack suffix starting at target, closed with target.
func cyclePath(stack []frame, target string) []string {
	var path []string
	for i := range stack {
		if stack[i].node == target {
			for _, f := range stack[i:] {
				path = append(path, f.node)
			}
			break
		}
	}
	return append(path, target)
}

// Order returns the documents in dependency order (dependencies first).
// ok is false when the graph has a cycle among present documents.
func (g *Graph) Order() (order []string, ok bool) {
	inDegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string)
	for n := range g.nodes {
		for _, dep := range g.edges[n] {
			if !g.nodes[dep] {
				continue
			}
			inDegree[n]++
			dependents[dep] = append(dependents[dep], n)
		}
	}

	var queue []string
	for _, n := range g.Nodes() {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)

		next := dependents[n]
		sort.Strings(next)
		for _, d := range next {
			inDegree[d]--
			if inDegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}
	return order, len(order) == len(g.nodes)
}

// Validator scores a single document.
type Validator interface {
	Validate(doc *prd.Document, proposed ...enhance.Enhancement) score.Result
}

// DocumentScore is the rubric result for one document of a set.
type DocumentScore struct {
	ID     string       `json:"id"`
	Result score.Result `json:"result"`
}

// IntegrationResult combines dependency validation with per-document scores.
type IntegrationResult struct {
	Report     Report          `json:"report"`
	Documents  []DocumentScore `json:"documents"`
	Order      []string        `json:"order,omitempty"`
	Integrated bool            `json:"integrated"`
}

// ValidateSet validates dependencies across docs and scores each document.
// The set is integrated when no dependency is missing, there is no cycle,
// and every document is executable.
func ValidateSet(docs []*prd.Document, v Validator) IntegrationResult {
	res := IntegrationResult{Report: Validate(docs)}

	allExecutable := true
	for _, d := range docs {
		r := v.Validate(d)
		if !r.Executable {
			allExecutable = false
		}
		res.Documents = append(res.Documents, DocumentScore{ID: d.ID, Result: r})
	}

	if order, ok := Build(docs).Order(); ok {
		res.Order = order
	}
	res.Integrated = res.Report.OK() && allExecutable
	return res
}
