// Package taxonomy holds the read-only three-level trade classification
// (L1 domain, L2 trade group, L3 work-item template) as an arena with a code
// index, so ancestor lookups are O(1) instead of repeated joins.
package taxonomy

import (
	"errors"
	"fmt"

	types "github.com/buildwise/takeoff-backend/internal/domain"
)

var ErrUnknownCategory = errors.New("unknown category")

type Tree struct {
	nodes  []types.CategoryNode
	index  map[string]int
	parent []int
}

// NewTree builds the arena from catalog rows and validates the single-parent
// chain: every L3 hangs off exactly one L2, every L2 off exactly one L1.
func NewTree(nodes []types.CategoryNode) (*Tree, error) {
	t := &Tree{
		nodes:  make([]types.CategoryNode, len(nodes)),
		index:  make(map[string]int, len(nodes)),
		parent: make([]int, len(nodes)),
	}
	copy(t.nodes, nodes)
	for i := range t.nodes {
		code := t.nodes[i].Code
		if code == "" {
			return nil, fmt.Errorf("category at position %d has empty code", i)
		}
		if _, dup := t.index[code]; dup {
			return nil, fmt.Errorf("duplicate category code %q", code)
		}
		t.index[code] = i
	}
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.Level < types.CategoryLevelDomain || n.Level > types.CategoryLevelWorkItem {
			return nil, fmt.Errorf("category %q has invalid level %d", n.Code, n.Level)
		}
		if n.Level == types.CategoryLevelDomain {
			if n.ParentCode != "" {
				return nil, fmt.Errorf("L1 category %q must not have a parent", n.Code)
			}
			t.parent[i] = -1
			continue
		}
		pi, ok := t.index[n.ParentCode]
		if !ok {
			return nil, fmt.Errorf("category %q references unknown parent %q", n.Code, n.ParentCode)
		}
		if t.nodes[pi].Level != n.Level-1 {
			return nil, fmt.Errorf("category %q (L%d) has parent %q at L%d", n.Code, n.Level, n.ParentCode, t.nodes[pi].Level)
		}
		t.parent[i] = pi
	}
	return t, nil
}

func (t *Tree) Resolve(code string) (*types.CategoryNode, error) {
	i, ok := t.index[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, code)
	}
	return &t.nodes[i], nil
}

// Ancestors returns the chain [L1, L2?, L3?] ending at code itself.
func (t *Tree) Ancestors(code string) ([]*types.CategoryNode, error) {
	i, ok := t.index[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, code)
	}
	var chain [3]*types.CategoryNode
	n := 0
	for j := i; j >= 0; j = t.parent[j] {
		chain[t.nodes[j].Level-1] = &t.nodes[j]
		n++
	}
	out := make([]*types.CategoryNode, 0, n)
	for _, c := range chain {
		if c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

// ScopeOf resolves a code to its (l1, l2, l3) scope codes; levels above the
// node's own are empty.
func (t *Tree) ScopeOf(code string) (l1, l2, l3 string, err error) {
	chain, err := t.Ancestors(code)
	if err != nil {
		return "", "", "", err
	}
	for _, c := range chain {
		switch c.Level {
		case types.CategoryLevelDomain:
			l1 = c.Code
		case types.CategoryLevelTradeGroup:
			l2 = c.Code
		case types.CategoryLevelWorkItem:
			l3 = c.Code
		}
	}
	return l1, l2, l3, nil
}

// Len reports how many nodes the tree holds.
func (t *Tree) Len() int { return len(t.nodes) }
