// Package hierarchy 在一次性读取的员工快照上建立上下级关系索引。
//
// 所有遍历都以员工总数为上限，遇到环直接返回 DataIntegrityFault，不会死循环。
package hierarchy

import (
	"slices"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
)

type Index struct {
	byID     map[int64]*domain.Employee
	children map[int64][]int64
	roots    []int64
	order    []int64
}

func New(employees []*domain.Employee) *Index {
	idx := &Index{
		byID:     make(map[int64]*domain.Employee, len(employees)),
		children: make(map[int64][]int64),
		order:    make([]int64, 0, len(employees)),
	}

	for _, e := range employees {
		idx.byID[e.ID] = e
		idx.order = append(idx.order, e.ID)
	}
	slices.Sort(idx.order)

	for _, id := range idx.order {
		e := idx.byID[id]
		if e.ManagerID == nil {
			idx.roots = append(idx.roots, id)
			continue
		}
		idx.children[*e.ManagerID] = append(idx.children[*e.ManagerID], id)
	}

	return idx
}

func (idx *Index) Len() int {
	return len(idx.order)
}

func (idx *Index) Get(id int64) (*domain.Employee, bool) {
	e, ok := idx.byID[id]
	return e, ok
}

// All 按 id 升序返回全部员工
func (idx *Index) All() []*domain.Employee {
	all := make([]*domain.Employee, 0, len(idx.order))
	for _, id := range idx.order {
		all = append(all, idx.byID[id])
	}
	return all
}

// Roots 返回所有 managerId 为空的员工，正常情况下只有 CEO 一个
func (idx *Index) Roots() []int64 {
	return slices.Clone(idx.roots)
}

func (idx *Index) Children(id int64) []int64 {
	return slices.Clone(idx.children[id])
}

func (idx *Index) HasChildren(id int64) bool {
	return len(idx.children[id]) > 0
}

// Siblings 返回与 id 拥有同一上级的其他员工；没有上级的员工没有同级
func (idx *Index) Siblings(id int64) []int64 {
	e, ok := idx.byID[id]
	if !ok || e.ManagerID == nil {
		return nil
	}

	siblings := make([]int64, 0)
	for _, c := range idx.children[*e.ManagerID] {
		if c != id {
			siblings = append(siblings, c)
		}
	}
	return siblings
}

// Descendants 以广度优先的顺序返回 id 的全部下属（不含自身）
func (idx *Index) Descendants(id int64) ([]int64, error) {
	if _, ok := idx.byID[id]; !ok {
		return nil, apperror.Newf(apperror.KindNotFound, "employee %d not found", id)
	}

	visited := map[int64]bool{id: true}
	queue := []int64{id}
	result := make([]int64, 0)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, c := range idx.children[current] {
			if visited[c] {
				return nil, apperror.Newf(apperror.KindIntegrity, "reporting cycle detected below employee %d", id)
			}
			visited[c] = true
			result = append(result, c)
			queue = append(queue, c)
		}
	}

	return result, nil
}

// Ancestors 返回从直接上级到根的上级链
func (idx *Index) Ancestors(id int64) ([]int64, error) {
	e, ok := idx.byID[id]
	if !ok {
		return nil, apperror.Newf(apperror.KindNotFound, "employee %d not found", id)
	}

	chain := make([]int64, 0)
	seen := map[int64]bool{id: true}

	for e.ManagerID != nil {
		parentID := *e.ManagerID
		if seen[parentID] || len(chain) >= len(idx.order) {
			return nil, apperror.Newf(apperror.KindIntegrity, "reporting cycle detected above employee %d", id)
		}

		parent, ok := idx.byID[parentID]
		if !ok {
			return nil, apperror.Newf(apperror.KindIntegrity, "employee %d references missing manager %d", e.ID, parentID)
		}

		seen[parentID] = true
		chain = append(chain, parentID)
		e = parent
	}

	return chain, nil
}

// IsDescendant 报告 nodeID 是否位于 ancestorID 的子树中（不含 ancestorID 自身）
func (idx *Index) IsDescendant(ancestorID, nodeID int64) (bool, error) {
	if ancestorID == nodeID {
		return false, nil
	}

	chain, err := idx.Ancestors(nodeID)
	if err != nil {
		return false, err
	}

	return slices.Contains(chain, ancestorID), nil
}

// Subtree 返回 id 及其全部下属组成的集合
func (idx *Index) Subtree(id int64) (map[int64]bool, error) {
	descendants, err := idx.Descendants(id)
	if err != nil {
		return nil, err
	}

	set := make(map[int64]bool, len(descendants)+1)
	set[id] = true
	for _, d := range descendants {
		set[d] = true
	}
	return set, nil
}

// Validate 检查整个快照中不存在环和悬空的上级引用，包括根节点无法到达的环
func (idx *Index) Validate() error {
	for _, id := range idx.order {
		if _, err := idx.Ancestors(id); err != nil {
			return err
		}
	}
	return nil
}

// Tree 构造以 rootID 为根的嵌套结构，view 决定每个节点的输出形式
func (idx *Index) Tree(rootID int64, view func(*domain.Employee) domain.EmployeeView) (domain.TreeNode, error) {
	// 先做一次有界遍历，确认子树中不存在环，之后的递归才是安全的
	if _, err := idx.Descendants(rootID); err != nil {
		return domain.TreeNode{}, err
	}
	return idx.buildNode(rootID, view), nil
}

func (idx *Index) buildNode(id int64, view func(*domain.Employee) domain.EmployeeView) domain.TreeNode {
	node := domain.TreeNode{
		Employee: view(idx.byID[id]),
		Children: make([]domain.TreeNode, 0, len(idx.children[id])),
	}
	for _, c := range idx.children[id] {
		node.Children = append(node.Children, idx.buildNode(c, view))
	}
	return node
}
