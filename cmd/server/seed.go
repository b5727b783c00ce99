package main

import (
	"context"
	"fmt"

	"github.com/sitecms/internal/config"
	"github.com/sitecms/internal/db"
	"github.com/sitecms/internal/logging"
	"github.com/sitecms/internal/seed"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the database with sample content",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := db.Init(cfg.DatabaseDSN, logging.GormLogger("warn")); err != nil {
			return fmt.Errorf("init database: %w", err)
		}

		fmt.Println("开始生成测试数据...")
		summary, err := seed.Run(context.Background(), db.DB)
		if err != nil {
			return err
		}
		fmt.Printf("用户 %d，分类 %d，标签 %d，文章 %d，团队成员 %d，职位 %d\n",
			summary.Users, summary.Categories, summary.Tags, summary.Posts, summary.Team, summary.Jobs)
		fmt.Printf("示例账号密码: %s\n", seed.DefaultPassword)
		return nil
	},
}
