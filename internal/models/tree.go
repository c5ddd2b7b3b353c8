package models

import (
	"github.com/google/uuid"
)

// Tree is a flat arena of parent-linked nodes used for requirement and
// department hierarchies. Parents must be inserted before their children,
// and reparenting runs an explicit cycle check, so the arena can be walked
// without unbounded pointer-chasing.
type Tree struct {
	nodes   []treeNode
	indexOf map[uuid.UUID]int
}

type treeNode struct {
	id     uuid.UUID
	parent int // index into nodes, -1 for roots
}

func NewTree() *Tree {
	return &Tree{indexOf: make(map[uuid.UUID]int)}
}

func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) Contains(id uuid.UUID) bool {
	_, ok := t.indexOf[id]
	return ok
}

// Insert adds a node. The parent, when given, must already be present.
func (t *Tree) Insert(id uuid.UUID, parentID *uuid.UUID) error {
	if _, ok := t.indexOf[id]; ok {
		return &ValidationError{Field: "id", Message: "node already present: " + id.String()}
	}

	parent := -1
	if parentID != nil {
		if *parentID == id {
			return &ValidationError{Field: "parent_id", Message: "node cannot be its own parent"}
		}
		idx, ok := t.indexOf[*parentID]
		if !ok {
			return &ValidationError{Field: "parent_id", Message: "unknown parent: " + parentID.String()}
		}
		parent = idx
	}

	t.indexOf[id] = len(t.nodes)
	t.nodes = append(t.nodes, treeNode{id: id, parent: parent})
	return nil
}

// Reparent moves a node under a new parent, rejecting moves that would
// introduce a cycle.
func (t *Tree) Reparent(id uuid.UUID, parentID *uuid.UUID) error {
	idx, ok := t.indexOf[id]
	if !ok {
		return &NotFoundError{Kind: "tree node", ID: id.String()}
	}

	if parentID == nil {
		t.nodes[idx].parent = -1
		return nil
	}

	pidx, ok := t.indexOf[*parentID]
	if !ok {
		return &ValidationError{Field: "parent_id", Message: "unknown parent: " + parentID.String()}
	}

	// Walk up from the candidate parent; hitting the node means a cycle.
	for cur := pidx; cur != -1; cur = t.nodes[cur].parent {
		if cur == idx {
			return &ValidationError{Field: "parent_id", Message: "reparenting would create a cycle"}
		}
	}

	t.nodes[idx].parent = pidx
	return nil
}

// Ancestors returns the parent chain from the node's direct parent to the
// root.
func (t *Tree) Ancestors(id uuid.UUID) []uuid.UUID {
	idx, ok := t.indexOf[id]
	if !ok {
		return nil
	}
	var chain []uuid.UUID
	for cur := t.nodes[idx].parent; cur != -1; cur = t.nodes[cur].parent {
		chain = append(chain, t.nodes[cur].id)
	}
	return chain
}

// Descendants returns every node below the given one, in insertion order.
func (t *Tree) Descendants(id uuid.UUID) []uuid.UUID {
	idx, ok := t.indexOf[id]
	if !ok {
		return nil
	}

	below := map[int]bool{idx: true}
	var out []uuid.UUID
	for i, n := range t.nodes {
		if n.parent != -1 && below[n.parent] {
			below[i] = true
			out = append(out, n.id)
		}
	}
	return out
}

// BuildRequirementTree indexes a framework's requirements, enforcing that
// every parent belongs to the same framework and that the parent chain is
// acyclic. Requirements arrive in arbitrary order, so insertion is staged
// parents-first.
func BuildRequirementTree(requirements []Requirement) (*Tree, error) {
	byID := make(map[uuid.UUID]*Requirement, len(requirements))
	for i := range requirements {
		byID[requirements[i].ID] = &requirements[i]
	}

	for i := range requirements {
		r := &requirements[i]
		if r.ParentID == nil {
			continue
		}
		parent, ok := byID[*r.ParentID]
		if !ok {
			return nil, &ValidationError{Field: "parent_id", Message: "parent requirement not in framework: " + r.ParentID.String()}
		}
		if parent.FrameworkID != r.FrameworkID {
			return nil, &ValidationError{Field: "parent_id", Message: "parent belongs to a different framework"}
		}
	}

	tree := NewTree()
	pending := make([]*Requirement, len(requirements))
	for i := range requirements {
		pending[i] = &requirements[i]
	}

	for len(pending) > 0 {
		progressed := false
		remaining := pending[:0]
		for _, r := range pending {
			if r.ParentID == nil || tree.Contains(*r.ParentID) {
				if err := tree.Insert(r.ID, r.ParentID); err != nil {
					return nil, err
				}
				progressed = true
			} else {
				remaining = append(remaining, r)
			}
		}
		pending = remaining
		if !progressed {
			// Every remaining node waits on another remaining node.
			return nil, &ValidationError{Field: "parent_id", Message: "requirement parent chain contains a cycle"}
		}
	}

	return tree, nil
}

// BuildDepartmentTree indexes a company's departments with the same cycle
// guarantees as BuildRequirementTree.
func BuildDepartmentTree(departments []Department) (*Tree, error) {
	tree := NewTree()
	pending := make([]*Department, len(departments))
	for i := range departments {
		pending[i] = &departments[i]
	}

	for len(pending) > 0 {
		progressed := false
		remaining := pending[:0]
		for _, d := range pending {
			if d.ParentID == nil || tree.Contains(*d.ParentID) {
				if err := tree.Insert(d.ID, d.ParentID); err != nil {
					return nil, err
				}
				progressed = true
			} else {
				remaining = append(remaining, d)
			}
		}
		pending = remaining
		if !progressed {
			return nil, &ValidationError{Field: "parent_id", Message: "department parent chain contains a cycle"}
		}
	}

	return tree, nil
}
