package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/access"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/config"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/orgchart"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/repository"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var n int

	flag.IntVar(&n, "n", 5, "每个部门要插入的普通员工数量")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if n < 0 {
		logger.Error("请输入合法的员工数量")
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	// 随机数据挂在 CEO 之下，因此先确保 CEO 存在
	if _, err := seed.InitialAdmin(context.Background(), cfg, repo); err != nil {
		logger.Error("无法创建初始管理员", "error", err)
		return
	}

	ceo, err := repo.GetEmployeeByEmail(context.Background(), cfg.InitialAdmin.Email)
	if err != nil {
		logger.Error("无法获取 CEO 的员工记录", "error", err)
		return
	}

	svc := orgchart.NewService(repo, logger)
	if _, err := seed.Org(context.Background(), svc, access.Actor{EmployeeID: ceo.ID, Role: domain.RoleAdmin}, seed.Options{
		Departments:        cfg.Seed.Departments,
		StaffPerDepartment: n,
		Password:           cfg.Seed.Employee.Password,
		EmailDomain:        cfg.Email.UserDomain,
	}); err != nil {
		logger.Error("无法插入随机组织数据", "error", err)
		return
	}
}
