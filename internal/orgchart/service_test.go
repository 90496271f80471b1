package orgchart

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/access"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
)

func TestListEmployeesPartitionsByRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		actor      access.Actor
		wantIDs    []int64
		unredacted []int64
	}{
		{"admin sees everyone in full", ceo, []int64{1, 2, 3, 4, 5, 6}, []int64{1, 2, 3, 4, 5, 6}},
		{"manager sees own subtree", engHead, []int64{2, 4, 5}, []int64{2, 4, 5}},
		{"other manager sees other subtree", salesMgr, []int64{3, 6}, []int64{3, 6}},
		{"employee sees peers and chain", engineer, []int64{1, 2, 4, 5}, []int64{4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.ListEmployees(ctx, tt.actor, Filter{}, Page{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, viewIDs(page.Employees))

			var full []int64
			for _, v := range page.Employees {
				if !v.Redacted() {
					full = append(full, v.ID)
				}
			}
			assert.Equal(t, tt.unredacted, full)
		})
	}
}

func TestListEmployeesPaginates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	page, err := svc.ListEmployees(ctx, ceo, Filter{}, Page{Page: 2, Limit: 4})
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6}, viewIDs(page.Employees))
	assert.Equal(t, domain.Pagination{Page: 2, Limit: 4, Total: 6, TotalPages: 2}, page.Pagination)

	page, err = svc.ListEmployees(ctx, ceo, Filter{}, Page{Page: 3, Limit: 4})
	require.NoError(t, err)
	assert.Empty(t, page.Employees)
	assert.Equal(t, int64(6), page.Pagination.Total)
}

func TestListEmployeesFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	page, err := svc.ListEmployees(ctx, ceo, Filter{Search: "ENGINEER"}, Page{})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4, 5}, viewIDs(page.Employees))

	page, err = svc.ListEmployees(ctx, ceo, Filter{Department: "sales"}, Page{})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 6}, viewIDs(page.Employees))

	page, err = svc.ListEmployees(ctx, ceo, Filter{ManagerID: ptr(2)}, Page{})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, viewIDs(page.Employees))

	// 过滤只作用在可见集合上
	page, err = svc.ListEmployees(ctx, engineer, Filter{Department: "sales"}, Page{})
	require.NoError(t, err)
	assert.Empty(t, page.Employees)
}

func TestGetEmployee(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	v, err := svc.GetEmployee(ctx, engineer, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.ID)
	assert.True(t, v.Redacted())

	v, err = svc.GetEmployee(ctx, engineer, 4)
	require.NoError(t, err)
	require.NotNil(t, v.Salary)
	assert.Equal(t, "4000", v.Salary.String())
	assert.Equal(t, "1990-01-04", *v.BirthDate)

	_, err = svc.GetEmployee(ctx, engineer, 6)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = svc.GetEmployee(ctx, ceo, 99)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestManagerCandidates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	views, err := svc.ManagerCandidates(ctx, ceo, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, viewIDs(views))

	views, err = svc.ManagerCandidates(ctx, ceo, "engineering")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, viewIDs(views))

	views, err = svc.ManagerCandidates(ctx, engHead, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, viewIDs(views))

	views, err = svc.ManagerCandidates(ctx, engineer, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, viewIDs(views))
	for _, v := range views {
		assert.True(t, v.Redacted())
	}
}

func TestManagersForExcludesSubtree(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	views, err := svc.ManagersFor(ctx, ceo, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, viewIDs(views))

	_, err = svc.ManagersFor(ctx, engineer, 6)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestTree(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	trees, err := svc.Tree(ctx, ceo)
	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.Equal(t, int64(1), trees[0].Employee.ID)
	require.Len(t, trees[0].Children, 2)
	assert.Equal(t, int64(2), trees[0].Children[0].Employee.ID)
	assert.Len(t, trees[0].Children[0].Children, 2)

	trees, err = svc.Tree(ctx, salesMgr)
	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.Equal(t, int64(3), trees[0].Employee.ID)
	require.Len(t, trees[0].Children, 1)
	assert.Equal(t, int64(6), trees[0].Children[0].Employee.ID)
	assert.False(t, trees[0].Children[0].Employee.Redacted())

	_, err = svc.Tree(ctx, engineer)
	assert.True(t, apperror.Is(err, apperror.KindDenied))
}

func TestTreeRejectsCycle(t *testing.T) {
	svc, store := newTestService(t)
	// 直接篡改存储制造 2 -> 4 -> 2 的环
	store.state.employees[2].ManagerID = ptr(4)

	_, err := svc.ListEmployees(context.Background(), engHead, Filter{}, Page{})
	assert.True(t, apperror.Is(err, apperror.KindIntegrity))

	_, err = svc.ReassignManager(context.Background(), ceo, 5, 4)
	assert.True(t, apperror.Is(err, apperror.KindIntegrity))
}

func TestAdminReadsRejectCycleCutOffFromRoot(t *testing.T) {
	var logs bytes.Buffer
	store := newMemStore(orgFixture())
	svc := NewService(store, slog.New(slog.NewTextHandler(&logs, nil)))
	ctx := context.Background()

	// 2 -> 4 -> 2，这个环与 CEO 断开，从根节点出发遍历不到
	store.state.employees[2].ManagerID = ptr(4)

	_, err := svc.Tree(ctx, ceo)
	assert.True(t, apperror.Is(err, apperror.KindIntegrity))

	_, err = svc.ListEmployees(ctx, ceo, Filter{}, Page{})
	assert.True(t, apperror.Is(err, apperror.KindIntegrity))

	_, err = svc.VisibleEmployees(ctx, ceo)
	assert.True(t, apperror.Is(err, apperror.KindIntegrity))

	_, err = svc.GetEmployee(ctx, ceo, 3)
	assert.True(t, apperror.Is(err, apperror.KindIntegrity))

	assert.Contains(t, logs.String(), "层级数据损坏")
	assert.Contains(t, logs.String(), "op=\"build tree\"")

	// 与环无关的经理仍然可以查看自己的子树
	trees, err := svc.Tree(ctx, salesMgr)
	require.NoError(t, err)
	assert.Equal(t, int64(3), trees[0].Employee.ID)
}

func TestDepartmentStats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	stats, err := svc.DepartmentStats(ctx, ceo)
	require.NoError(t, err)
	assert.Equal(t, []domain.DepartmentCount{
		{Department: "engineering", Count: 3},
		{Department: "management", Count: 1},
		{Department: "sales", Count: 2},
	}, stats)

	_, err = svc.DepartmentStats(ctx, engHead)
	assert.True(t, apperror.Is(err, apperror.KindDenied))
}
