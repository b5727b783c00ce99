package main

import (
	"errors"
	"fmt"

	"github.com/sitecms/internal/config"
	"github.com/sitecms/internal/db"
	"github.com/sitecms/internal/logging"
	"github.com/spf13/cobra"
)

var initUserCmd = &cobra.Command{
	Use:   "init-user",
	Short: "Create the super root admin account from config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.SuperRootUserName == "" || cfg.SuperRootPassword == "" {
			return errors.New("super_root_user_name and super_root_password must be set")
		}

		if err := db.Init(cfg.DatabaseDSN, logging.GormLogger("warn")); err != nil {
			return fmt.Errorf("init database: %w", err)
		}

		created, err := db.EnsureUser(db.DB, cfg.SuperRootUserName, cfg.SuperRootPassword)
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if !created {
			fmt.Println("用户已存在，无需初始化")
			return nil
		}
		fmt.Println("管理员用户创建成功:", cfg.SuperRootUserName)
		return nil
	},
}
