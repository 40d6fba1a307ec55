// Package dirtree maintains the parent/child index of the directory tree
// and answers ancestor/descendant queries for the access resolver.
//
// The index is an arena of records keyed by id, each storing a parent id;
// all traversal goes through id lookups, never raw back-pointers, so the
// structure stays acyclic and trivially serializable. An Index is built per
// request from freshly-read store rows and is never cached across requests.
package dirtree

// Node is one directory record as the index sees it.
type Node struct {
	ID       int64
	ParentID *int64
	Name     string
	Path     string
	IsPublic bool
}

// Index answers tree queries over a snapshot of directory rows.
type Index struct {
	nodes    map[int64]Node
	children map[int64][]int64
	roots    []int64
}

// NewIndex builds an index from a snapshot of directory rows. Nodes whose
// parent is missing from the snapshot are treated as roots rather than
// dropped, so a partial snapshot still resolves.
func NewIndex(nodes []Node) *Index {
	idx := &Index{
		nodes:    make(map[int64]Node, len(nodes)),
		children: make(map[int64][]int64),
	}
	for _, n := range nodes {
		idx.nodes[n.ID] = n
	}
	for _, n := range nodes {
		if n.ParentID == nil {
			idx.roots = append(idx.roots, n.ID)
			continue
		}
		if _, ok := idx.nodes[*n.ParentID]; !ok {
			idx.roots = append(idx.roots, n.ID)
			continue
		}
		idx.children[*n.ParentID] = append(idx.children[*n.ParentID], n.ID)
	}
	return idx
}

// Get returns the node for id.
func (idx *Index) Get(id int64) (Node, bool) {
	n, ok := idx.nodes[id]
	return n, ok
}

// Len returns the number of indexed directories.
func (idx *Index) Len() int { return len(idx.nodes) }

// Roots returns the ids of all root directories.
func (idx *Index) Roots() []int64 {
	out := make([]int64, len(idx.roots))
	copy(out, idx.roots)
	return out
}

// ChildrenOf returns the ids of the direct children of id.
func (idx *Index) ChildrenOf(id int64) []int64 {
	kids := idx.children[id]
	out := make([]int64, len(kids))
	copy(out, kids)
	return out
}

// AncestorsOf returns the ancestor chain of id in root-to-parent order.
// Unknown ids yield nil. The walk is bounded by the arena size, so a
// corrupt parent link cannot loop forever.
func (idx *Index) AncestorsOf(id int64) []int64 {
	n, ok := idx.nodes[id]
	if !ok {
		return nil
	}
	var chain []int64
	for steps := 0; n.ParentID != nil && steps < len(idx.nodes); steps++ {
		parent, ok := idx.nodes[*n.ParentID]
		if !ok {
			break
		}
		chain = append(chain, parent.ID)
		n = parent
	}
	// reverse to root-to-parent order
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// DescendantsOf returns the ids of the full subtree below id, not
// including id itself.
func (idx *Index) DescendantsOf(id int64) []int64 {
	var out []int64
	stack := append([]int64(nil), idx.children[id]...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur)
		stack = append(stack, idx.children[cur]...)
	}
	return out
}

// IsAncestor reports whether a is a strict ancestor of b.
func (idx *Index) IsAncestor(a, b int64) bool {
	for _, anc := range idx.AncestorsOf(b) {
		if anc == a {
			return true
		}
	}
	return false
}

// EffectivePublic reports whether id is public either directly or through
// an ancestor: the public flag cascades down the tree.
func (idx *Index) EffectivePublic(id int64) bool {
	n, ok := idx.nodes[id]
	if !ok {
		return false
	}
	if n.IsPublic {
		return true
	}
	for _, anc := range idx.AncestorsOf(id) {
		if idx.nodes[anc].IsPublic {
			return true
		}
	}
	return false
}

// ChildPath computes the materialized path for a new child of parent.
// The path is slash-joined ancestor names cached at creation time; it is
// not recomputed when a directory is renamed, so callers must not depend
// on it reflecting current names afterwards.
func ChildPath(parentPath, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + "/" + name
}
