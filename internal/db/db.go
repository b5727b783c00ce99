package db

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

// Init 根据 DSN 打开数据库并执行自动迁移。
// postgres:// 或 key=value 形式的 DSN 使用 Postgres，其余视为 SQLite 文件路径；
// dsn 为空时回退到 sitecms.db。
func Init(dsn string, gormLogger logger.Interface) error {
	gdb, err := Open(dsn, gormLogger)
	if err != nil {
		return err
	}
	if err := Migrate(gdb); err != nil {
		return err
	}
	DB = gdb
	return nil
}

// Open opens a connection without migrating.
func Open(dsn string, gormLogger logger.Interface) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "sitecms.db"
	}

	cfg := &gorm.Config{}
	if gormLogger != nil {
		cfg.Logger = gormLogger
	}

	if IsPostgresDSN(dsn) {
		return gorm.Open(postgres.Open(dsn), cfg)
	}

	if err := ensureParentDir(dsn); err != nil {
		return nil, err
	}
	return gorm.Open(sqlite.Open(dsn), cfg)
}

// Migrate creates or updates every table.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&User{},
		&AccessToken{},
		&Post{},
		&PostTerm{},
		&MediaAsset{},
		&Category{},
		&Tag{},
		&TeamMember{},
		&JobListing{},
		&Application{},
	)
}

// IsPostgresDSN reports whether dsn targets Postgres.
func IsPostgresDSN(dsn string) bool {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return true
	}
	return strings.Contains(lower, "host=") && strings.Contains(lower, "dbname=")
}

func ensureParentDir(path string) error {
	if strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
