package onnx

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/onnx/operators"
)

// Order selects how the executor orders the graph nodes.
type Order int

const (
	// OrderResolve sorts nodes by their data dependencies before running.
	OrderResolve Order = iota
	// OrderRecorded runs nodes in file order and relies on the exporter
	// having stored them topologically sorted.
	OrderRecorded
)

// String returns the configuration name of the order.
func (o Order) String() string {
	switch o {
	case OrderResolve:
		return "resolve"
	case OrderRecorded:
		return "recorded"
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

// ParseOrder parses "resolve" or "recorded".
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "resolve":
		return OrderResolve, nil
	case "recorded":
		return OrderRecorded, nil
	}
	return 0, errors.Errorf("unknown execution order %q (want resolve or recorded)", s)
}

// Schedule returns node positions in an order where every node runs after
// the nodes producing its inputs.
//
// It is Kahn's algorithm with ties broken by recorded position, so a graph
// that is already sorted keeps its recorded order. Names are bound with
// overwrite semantics, as when running in recorded order: an input reads the
// last producer recorded before its consumer. With no earlier producer it
// reads the external value when the name is in external (initializers,
// graph inputs) or the consumer is itself the first producer, as in
// x = Relu(x); otherwise it reads the first later producer. Every read of a
// binding completes before the next producer overwrites it, and producers
// of one name keep their recorded order. A name nothing binds surfaces as
// MissingInput when the node runs. A dependency cycle fails with
// CycleDetected.
func Schedule(nodes []operators.Node, external []string) ([]int, error) {
	bound := make(map[string]bool, len(external))
	for _, name := range external {
		bound[name] = true
	}
	producers := make(map[string][]int)
	for i := range nodes {
		for _, out := range nodes[i].Outputs {
			if out == "" {
				continue
			}
			if ps := producers[out]; len(ps) == 0 || ps[len(ps)-1] != i {
				producers[out] = append(ps, i)
			}
		}
	}

	g := newDepGraph(len(nodes))
	for i := range nodes {
		for _, in := range nodes[i].Inputs {
			if in == "" {
				continue
			}
			ps := producers[in]
			k := bindingFor(ps, i, bound[in])
			if k >= 0 {
				g.edge(ps[k], i)
			}
			if next := k + 1; next < len(ps) && ps[next] != i {
				g.edge(i, ps[next])
			}
		}
	}
	for _, ps := range producers {
		for k := 1; k < len(ps); k++ {
			g.edge(ps[k-1], ps[k])
		}
	}

	ready := &positionHeap{}
	for i, d := range g.indegree {
		if d == 0 {
			heap.Push(ready, i)
		}
	}
	order := make([]int, 0, len(nodes))
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		order = append(order, i)
		for _, d := range g.dependents[i] {
			g.indegree[d]--
			if g.indegree[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}

	if len(order) < len(nodes) {
		var stuck []string
		for i, d := range g.indegree {
			if d > 0 {
				stuck = append(stuck, describeNode(i, &nodes[i]))
			}
		}
		return nil, errs.Cyclef("%d nodes depend on each other circularly: %s",
			len(stuck), strings.Join(stuck, ", "))
	}
	return order, nil
}

// bindingFor returns the index in ps (producer positions, ascending) of the
// binding node i reads, or -1 when it reads the external value.
func bindingFor(ps []int, i int, external bool) int {
	if k := sort.SearchInts(ps, i) - 1; k >= 0 {
		return k
	}
	if external || len(ps) == 0 || ps[0] == i {
		return -1
	}
	return 0
}

// depGraph holds deduplicated "must run before" edges between positions.
type depGraph struct {
	indegree   []int
	dependents [][]int
	seen       map[[2]int]bool
}

func newDepGraph(n int) *depGraph {
	return &depGraph{
		indegree:   make([]int, n),
		dependents: make([][]int, n),
		seen:       make(map[[2]int]bool),
	}
}

func (g *depGraph) edge(from, to int) {
	if from == to || g.seen[[2]int{from, to}] {
		return
	}
	g.seen[[2]int{from, to}] = true
	g.indegree[to]++
	g.dependents[from] = append(g.dependents[from], to)
}

// RecordedOrder returns 0..n-1.
func RecordedOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func describeNode(i int, node *operators.Node) string {
	if node.Name == "" {
		return fmt.Sprintf("#%d (%s)", i, node.OpType)
	}
	return fmt.Sprintf("#%d %s (%s)", i, node.Name, node.OpType)
}

// positionHeap is a min-heap of node positions.
type positionHeap []int

func (h positionHeap) Len() int           { return len(h) }
func (h positionHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h positionHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *positionHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *positionHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
