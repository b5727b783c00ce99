package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/sitecms/internal/assetstore"
	"github.com/sitecms/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := db.Open(dsn, logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func createTestUser(t *testing.T, gdb *gorm.DB, username, role string) Identity {
	t.Helper()
	user := db.User{Username: username, Password: "x", DisplayName: username, Role: role}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return Identity{UserID: user.ID, Role: role}
}

func newTestStore(t *testing.T, root string, kind assetstore.Kind) *assetstore.Store {
	t.Helper()
	store, err := assetstore.New(assetstore.Options{
		BaseDir: t.TempDir(),
		Root:    root,
		BaseURL: "/static",
		Kind:    kind,
		Now:     func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("failed to create asset store: %v", err)
	}
	return store
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	img.Set(1, 1, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }

func timePtr(v time.Time) *time.Time { return &v }
