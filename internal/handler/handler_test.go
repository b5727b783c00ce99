package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/sitecms/internal/assetstore"
	"github.com/sitecms/internal/db"
	"github.com/sitecms/internal/service"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	api    *API
	engine *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := db.Open(fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano()), logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	baseDir := t.TempDir()
	mediaStore, err := assetstore.New(assetstore.Options{BaseDir: baseDir, Root: "uploads", BaseURL: "/static", Kind: assetstore.KindImage})
	if err != nil {
		t.Fatalf("failed to create media store: %v", err)
	}
	fileStore, err := assetstore.New(assetstore.Options{BaseDir: baseDir, Root: "files", BaseURL: "/static", Kind: assetstore.KindDocument})
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}

	api := NewAPI(Options{
		DB:             gdb,
		MediaStore:     mediaStore,
		FileStore:      fileStore,
		TokenTTL:       time.Hour,
		MaxUploadBytes: 1 << 20,
		Limiter:        NewLoginLimiter(3, time.Minute),
	})

	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))
	r.POST("/auth/login", api.Login)
	r.GET("/blog", api.ListBlog)
	r.GET("/blog/:slug", api.GetBlogPost)

	auth := r.Group("")
	auth.Use(api.AuthRequired())
	auth.POST("/media/upload", api.UploadMedia)
	auth.GET("/media", api.ListMedia)
	auth.PUT("/media/:id", api.UpdateMedia)
	auth.DELETE("/media/:id", api.DeleteMedia)
	auth.PUT("/media", api.RenameMediaFile)
	auth.DELETE("/media", api.DeleteMediaFile)
	auth.POST("/files/upload", api.UploadFile)
	auth.GET("/files", api.ListFiles)
	auth.GET("/blog/admin", api.ListAdminPosts)
	auth.POST("/blog", api.CreatePost)
	auth.PUT("/blog/:id", api.UpdatePost)
	auth.DELETE("/blog/:id", api.DeletePost)
	auth.POST("/tags", api.CreateTerm(service.KindTag))
	auth.GET("/users", AdminRequired(), api.ListUsers)

	return &testEnv{api: api, engine: r}
}

func (e *testEnv) createUser(t *testing.T, username, role string) {
	t.Helper()
	if _, err := e.api.auth.CreateUser(context.Background(), service.UserInput{
		Username: username,
		Password: "password123",
		Role:     role,
	}); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": "password123"})
	if rr.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	decode(t, rr, &body)
	return body.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.engine.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) upload(t *testing.T, path, token, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(data)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	e.engine.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestLoginIssuesTokenAndThrottles(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", db.RoleAdmin)

	token := env.login(t, "alice")
	if token == "" {
		t.Fatalf("expected token")
	}
	if rr := env.do(t, http.MethodGet, "/users", token, nil); rr.Code != http.StatusOK {
		t.Fatalf("expected admin to list users, got %d", rr.Code)
	}

	rr := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "wrong"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "wrong"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "password123"})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", rr.Code)
	}
}

func TestAuthRequiredRejectsMissingAndInvalidTokens(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "bob", db.RoleAuthor)

	if rr := env.do(t, http.MethodGet, "/media", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/media", "not-a-token", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", rr.Code)
	}

	token := env.login(t, "bob")
	if rr := env.do(t, http.MethodGet, "/users", token, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rr.Code)
	}
}

func TestMediaEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "editor", db.RoleEditor)
	token := env.login(t, "editor")

	rr := env.upload(t, "/media/upload", token, "photo.png", testPNG(t))
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload failed: %d %s", rr.Code, rr.Body.String())
	}
	var item db.MediaAsset
	decode(t, rr, &item)
	if item.Width != 4 || item.URL == "" {
		t.Fatalf("unexpected media item %+v", item)
	}

	rr = env.upload(t, "/media/upload", token, "fake.png", []byte("not an image"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for mismatched magic, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/media?page=5", token, nil)
	var list struct {
		Media      []db.MediaAsset `json:"media"`
		TotalPages int             `json:"totalPages"`
	}
	decode(t, rr, &list)
	if rr.Code != http.StatusOK || len(list.Media) != 0 || list.TotalPages != 1 {
		t.Fatalf("expected empty page beyond the last, got %d %+v", rr.Code, list)
	}

	rr = env.do(t, http.MethodPut, fmt.Sprintf("/media/%d", item.ID), token, map[string]string{"altText": "A red pixel"})
	if rr.Code != http.StatusOK {
		t.Fatalf("update failed: %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPut, "/media", token, map[string]string{"oldPath": item.URL, "newName": "photo.txt"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for extension change, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodPut, "/media", token, map[string]string{"oldPath": item.URL, "newName": "photo-v2.png"})
	if rr.Code != http.StatusOK {
		t.Fatalf("rename failed: %d %s", rr.Code, rr.Body.String())
	}
	var renamed struct {
		URL string `json:"url"`
	}
	decode(t, rr, &renamed)
	if renamed.URL == item.URL {
		t.Fatalf("expected new url after rename")
	}

	rr = env.do(t, http.MethodDelete, "/media", token, map[string]string{"filePath": "../etc/passwd"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for traversal, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodDelete, fmt.Sprintf("/media/%d", item.ID), token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete failed: %d %s", rr.Code, rr.Body.String())
	}
	rr = env.do(t, http.MethodDelete, fmt.Sprintf("/media/%d", item.ID), token, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rr.Code)
	}
}

func TestPostEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "editor", db.RoleEditor)
	env.createUser(t, "writer", db.RoleAuthor)
	editor := env.login(t, "editor")
	writer := env.login(t, "writer")

	rr := env.do(t, http.MethodPost, "/blog", editor, map[string]interface{}{"content": "no title"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var failure struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	decode(t, rr, &failure)
	if failure.Error != "title is required" || failure.Field != "title" {
		t.Fatalf("expected validation message verbatim, got %+v", failure)
	}

	rr = env.do(t, http.MethodPost, "/blog", editor, map[string]interface{}{
		"title":  "Hello World",
		"tags":   []string{"go"},
		"action": "publish",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", rr.Code, rr.Body.String())
	}
	var post db.Post
	decode(t, rr, &post)
	if post.Status != "published" || post.Slug != "hello-world" {
		t.Fatalf("unexpected post %+v", post)
	}

	rr = env.do(t, http.MethodPost, "/blog", editor, map[string]interface{}{
		"title":       "Later",
		"published":   true,
		"publishedAt": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create scheduled failed: %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/blog", editor, map[string]interface{}{"title": "Bad date", "publishedAt": "tomorrow"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/blog?tag=go", "", nil)
	var public struct {
		Posts       []db.Post `json:"posts"`
		CurrentPage int       `json:"currentPage"`
		TotalPosts  int64     `json:"totalPosts"`
	}
	decode(t, rr, &public)
	if public.TotalPosts != 1 || public.CurrentPage != 1 || public.Posts[0].Title != "Hello World" {
		t.Fatalf("unexpected public listing %+v", public)
	}

	rr = env.do(t, http.MethodGet, "/blog/later", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("scheduled post must not be public, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/blog/hello-world", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected published post, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/blog/admin?search=nothing-matches", editor, nil)
	var admin struct {
		Posts  []db.Post             `json:"posts"`
		Counts service.StatusCounts `json:"counts"`
	}
	decode(t, rr, &admin)
	if len(admin.Posts) != 0 || admin.Counts.All != 2 || admin.Counts.Scheduled != 1 || admin.Counts.Published != 1 {
		t.Fatalf("unexpected admin listing %+v", admin)
	}

	rr = env.do(t, http.MethodGet, "/blog/admin?sortBy=bogus", editor, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPut, fmt.Sprintf("/blog/%d", post.ID), writer, map[string]interface{}{"title": "Hijack"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign post, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodDelete, fmt.Sprintf("/blog/%d", post.ID), editor, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete failed: %d", rr.Code)
	}
	rr = env.do(t, http.MethodPut, fmt.Sprintf("/blog/%d", post.ID), editor, map[string]interface{}{"title": "Again"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after permanent delete, got %d", rr.Code)
	}
}

func TestTermAndFileEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "editor", db.RoleEditor)
	token := env.login(t, "editor")

	if rr := env.do(t, http.MethodPost, "/tags", token, map[string]string{"name": "Go"}); rr.Code != http.StatusCreated {
		t.Fatalf("create tag failed: %d %s", rr.Code, rr.Body.String())
	}
	if rr := env.do(t, http.MethodPost, "/tags", token, map[string]string{"name": "go"}); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate tag, got %d", rr.Code)
	}

	if rr := env.upload(t, "/files/upload", token, "notes.txt", []byte("plain notes\n")); rr.Code != http.StatusCreated {
		t.Fatalf("file upload failed: %d %s", rr.Code, rr.Body.String())
	}
	if rr := env.upload(t, "/files/upload", token, "run.sh", []byte("#!/bin/sh\necho hi\n")); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for script upload, got %d", rr.Code)
	}

	rr := env.do(t, http.MethodGet, "/files", token, nil)
	var files struct {
		Files []assetstore.Asset `json:"files"`
	}
	decode(t, rr, &files)
	if len(files.Files) != 1 || files.Files[0].Filename != "notes.txt" {
		t.Fatalf("unexpected files %+v", files.Files)
	}
}
