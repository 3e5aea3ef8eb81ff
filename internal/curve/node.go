package curve

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrEmptyCurve is returned when a curve without nodes is evaluated.
var ErrEmptyCurve = errors.New("curve evaluation on empty node list")

// Node is a control point: output time X maps to source time Y.
type Node struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeList keeps nodes sorted by X. Nodes with equal X stay in insertion order.
// Selection is editing state and lives beside the geometry, not in Node.
type NodeList struct {
	nodes    []Node
	selected []bool
}

func NewNodeList(nodes ...Node) *NodeList {
	l := &NodeList{}
	for _, n := range nodes {
		l.Add(n)
	}
	return l
}

func (l *NodeList) Len() int { return len(l.nodes) }

func (l *NodeList) At(i int) Node { return l.nodes[i] }

// Nodes returns a copy of the geometry.
func (l *NodeList) Nodes() []Node {
	out := make([]Node, len(l.nodes))
	copy(out, l.nodes)
	return out
}

// Clone copies the geometry; selection is not carried over.
func (l *NodeList) Clone() *NodeList {
	return &NodeList{nodes: l.Nodes(), selected: make([]bool, len(l.nodes))}
}

// Add inserts a node after every node with X <= n.X and returns its index.
func (l *NodeList) Add(n Node) int {
	i := sort.Search(len(l.nodes), func(i int) bool { return l.nodes[i].X > n.X })
	l.nodes = append(l.nodes, Node{})
	copy(l.nodes[i+1:], l.nodes[i:])
	l.nodes[i] = n
	l.selected = append(l.selected, false)
	copy(l.selected[i+1:], l.selected[i:])
	l.selected[i] = false
	return i
}

func (l *NodeList) Remove(i int) error {
	if i < 0 || i >= len(l.nodes) {
		return fmt.Errorf("node index %d out of range [0,%d)", i, len(l.nodes))
	}
	l.nodes = append(l.nodes[:i], l.nodes[i+1:]...)
	l.selected = append(l.selected[:i], l.selected[i+1:]...)
	return nil
}

// RemoveSelected deletes all selected nodes and returns how many were removed.
func (l *NodeList) RemoveSelected() int {
	kept := l.nodes[:0]
	sel := l.selected[:0]
	removed := 0
	for i, n := range l.nodes {
		if l.selected[i] {
			removed++
			continue
		}
		kept = append(kept, n)
		sel = append(sel, false)
	}
	l.nodes, l.selected = kept, sel
	return removed
}

func (l *NodeList) Select(i int, on bool) {
	if i >= 0 && i < len(l.selected) {
		l.selected[i] = on
	}
}

func (l *NodeList) SelectAll() {
	for i := range l.selected {
		l.selected[i] = true
	}
}

func (l *NodeList) UnselectAll() {
	for i := range l.selected {
		l.selected[i] = false
	}
}

func (l *NodeList) IsSelected(i int) bool {
	return i >= 0 && i < len(l.selected) && l.selected[i]
}

// Selected returns the indices of selected nodes in order.
func (l *NodeList) Selected() []int {
	var out []int
	for i, s := range l.selected {
		if s {
			out = append(out, i)
		}
	}
	return out
}

// MoveSelected shifts selected nodes and restores X order. Selected nodes stay selected.
func (l *NodeList) MoveSelected(dx, dy float64) {
	type entry struct {
		n   Node
		sel bool
	}
	entries := make([]entry, len(l.nodes))
	for i := range l.nodes {
		entries[i] = entry{l.nodes[i], l.selected[i]}
		if l.selected[i] {
			entries[i].n.X += dx
			entries[i].n.Y += dy
		}
	}
	sort.SliceStable(entries, func(a, b int) bool { return entries[a].n.X < entries[b].n.X })
	for i, e := range entries {
		l.nodes[i], l.selected[i] = e.n, e.sel
	}
}

// Find returns the index of the first node within tol of x, or -1.
func (l *NodeList) Find(x, tol float64) int {
	for i, n := range l.nodes {
		if math.Abs(n.X-x) <= tol {
			return i
		}
	}
	return -1
}

// StartTime is the X of the first node, the earliest renderable output time.
func (l *NodeList) StartTime() float64 {
	if len(l.nodes) == 0 {
		return 0
	}
	return l.nodes[0].X
}

// EndTime is the X of the last node.
func (l *NodeList) EndTime() float64 {
	if len(l.nodes) == 0 {
		return 0
	}
	return l.nodes[len(l.nodes)-1].X
}
