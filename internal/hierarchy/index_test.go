package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
)

func ptr(id int64) *int64 { return &id }

// 1 CEO
// ├── 2 Head of Engineering
// │   ├── 4 Team Lead
// │   │   ├── 5
// │   │   └── 6
// │   └── 7
// └── 3 Head of Sales
//     └── 8
func fixture() []*domain.Employee {
	return []*domain.Employee{
		{ID: 1, Position: "Chief Executive Officer", Department: "management"},
		{ID: 2, ManagerID: ptr(1), Position: "Head of Engineering", Department: "engineering"},
		{ID: 3, ManagerID: ptr(1), Position: "Head of Sales", Department: "sales"},
		{ID: 4, ManagerID: ptr(2), Position: "Team Lead", Department: "engineering"},
		{ID: 5, ManagerID: ptr(4), Position: "Software Engineer", Department: "engineering"},
		{ID: 6, ManagerID: ptr(4), Position: "Software Engineer", Department: "engineering"},
		{ID: 7, ManagerID: ptr(2), Position: "QA Engineer", Department: "engineering"},
		{ID: 8, ManagerID: ptr(3), Position: "Sales Representative", Department: "sales"},
	}
}

func TestDescendants(t *testing.T) {
	idx := New(fixture())

	d, err := idx.Descendants(2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{4, 5, 6, 7}, d)

	d, err = idx.Descendants(1)
	require.NoError(t, err)
	assert.Len(t, d, 7)

	d, err = idx.Descendants(5)
	require.NoError(t, err)
	assert.Empty(t, d)

	_, err = idx.Descendants(99)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestAncestors(t *testing.T) {
	idx := New(fixture())

	chain, err := idx.Ancestors(5)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 2, 1}, chain)

	chain, err = idx.Ancestors(1)
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestIsDescendant(t *testing.T) {
	idx := New(fixture())

	ok, err := idx.IsDescendant(2, 6)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = idx.IsDescendant(3, 6)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = idx.IsDescendant(6, 6)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSiblingsAndRoots(t *testing.T) {
	idx := New(fixture())

	assert.Equal(t, []int64{6}, idx.Siblings(5))
	assert.Equal(t, []int64{3}, idx.Siblings(2))
	assert.Empty(t, idx.Siblings(1))
	assert.Equal(t, []int64{1}, idx.Roots())
	assert.True(t, idx.HasChildren(4))
	assert.False(t, idx.HasChildren(8))
}

func TestCycleIsReportedNotLooped(t *testing.T) {
	employees := fixture()
	// 2 -> 5 -> 4 -> 2
	employees[1].ManagerID = ptr(5)
	idx := New(employees)

	_, err := idx.Ancestors(5)
	assert.True(t, apperror.Is(err, apperror.KindIntegrity))

	_, err = idx.Descendants(2)
	assert.True(t, apperror.Is(err, apperror.KindIntegrity))

	assert.True(t, apperror.Is(idx.Validate(), apperror.KindIntegrity))
}

func TestValidateFindsCycleUnreachableFromRoot(t *testing.T) {
	assert.NoError(t, New(fixture()).Validate())

	employees := fixture()
	// 4 -> 5 -> 4，从根节点 1 出发遍历不到这个环
	employees[3].ManagerID = ptr(5)
	idx := New(employees)

	descendants, err := idx.Descendants(1)
	require.NoError(t, err)
	assert.NotContains(t, descendants, int64(4))

	assert.True(t, apperror.Is(idx.Validate(), apperror.KindIntegrity))
}

func TestSelfLoop(t *testing.T) {
	idx := New([]*domain.Employee{{ID: 1, ManagerID: ptr(1)}})

	_, err := idx.Ancestors(1)
	assert.True(t, apperror.Is(err, apperror.KindIntegrity))

	_, err = idx.Descendants(1)
	assert.True(t, apperror.Is(err, apperror.KindIntegrity))
}

func TestDanglingManager(t *testing.T) {
	idx := New([]*domain.Employee{{ID: 1}, {ID: 2, ManagerID: ptr(42)}})

	_, err := idx.Ancestors(2)
	assert.True(t, apperror.Is(err, apperror.KindIntegrity))
}

func TestTree(t *testing.T) {
	idx := New(fixture())

	tree, err := idx.Tree(2, func(e *domain.Employee) domain.EmployeeView { return e.View(true) })
	require.NoError(t, err)
	assert.Equal(t, int64(2), tree.Employee.ID)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, int64(4), tree.Children[0].Employee.ID)
	assert.Len(t, tree.Children[0].Children, 2)
	assert.Empty(t, tree.Children[1].Children)
}
