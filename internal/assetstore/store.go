// Package assetstore places uploaded files under a date-hierarchical address
// (<root>/<yyyy>/<mm>/<dd>/<name>) and performs store, rename and delete on them.
// Every address is validated to stay inside the configured root before any
// filesystem call runs.
package assetstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sitecms/internal/logging"
	"github.com/sitecms/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds the collision retry loop of Store.
const DefaultMaxAttempts = 20

var (
	ErrInvalidFileKind   = errors.New("file content does not match an allowed kind")
	ErrExtensionMismatch = errors.New("file extension cannot change")
	ErrInvalidPath       = errors.New("path is outside the asset root")
	ErrNotFound          = errors.New("asset not found")
	ErrExhausted         = errors.New("asset store exhausted filename attempts")
	ErrNameTaken         = errors.New("target filename already exists")
	ErrInvalidName       = errors.New("filename is required")
	ErrTooLarge          = errors.New("file exceeds the upload size limit")
)

// Options 描述一个资源根目录的配置。
type Options struct {
	// BaseDir 是物理目录，地址相对它解析，例如 web/static。
	BaseDir string
	// Root 是地址的第一段，例如 uploads 或 files。
	Root string
	// BaseURL 是静态资源的公开前缀，例如 /static 或 https://cdn.example.com。
	BaseURL     string
	Kind        Kind
	MaxBytes    int64
	MaxAttempts int
	Now         func() time.Time
}

// Asset describes a stored file.
type Asset struct {
	Address  string    `json:"address"`
	URL      string    `json:"url"`
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Kind     Kind      `json:"kind"`
	MIME     string    `json:"mime,omitempty"`
	Width    int       `json:"width,omitempty"`
	Height   int       `json:"height,omitempty"`
	ModTime  time.Time `json:"modTime"`
}

// Store owns one asset root.
type Store struct {
	baseDir     string
	rootDir     string
	root        string
	baseURL     string
	kind        Kind
	maxBytes    int64
	maxAttempts int
	now         func() time.Time
	stored      metric.Int64Counter
}

// New validates options and returns a Store. The root directory itself is
// created lazily by the first upload.
func New(opts Options) (*Store, error) {
	root := strings.Trim(path.Clean("/"+strings.ReplaceAll(opts.Root, "\\", "/")), "/")
	if root == "" {
		return nil, fmt.Errorf("asset root is required")
	}
	if strings.TrimSpace(opts.BaseDir) == "" {
		return nil, fmt.Errorf("asset base dir is required")
	}
	if opts.Kind != KindImage && opts.Kind != KindDocument {
		return nil, fmt.Errorf("unknown asset kind %q", opts.Kind)
	}

	baseDir, err := filepath.Abs(opts.BaseDir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		baseDir:     baseDir,
		rootDir:     filepath.Join(baseDir, filepath.FromSlash(root)),
		root:        root,
		baseURL:     strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		kind:        opts.Kind,
		maxBytes:    opts.MaxBytes,
		maxAttempts: opts.MaxAttempts,
		now:         opts.Now,
		stored:      telemetry.Counter("sitecms_assets_stored_total", "Number of stored asset files"),
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Root returns the first address segment.
func (s *Store) Root() string { return s.root }

// Kind returns the content policy of the store.
func (s *Store) Kind() Kind { return s.kind }

// URL builds the public URL of an address.
func (s *Store) URL(address string) string {
	return s.baseURL + "/" + strings.TrimLeft(address, "/")
}

// Store 校验内容后放入当日目录，重名时追加数字后缀。
func (s *Store) Store(ctx context.Context, data []byte, originalName, mimeHint string) (asset *Asset, err error) {
	_, span := telemetry.StartSpan(ctx, "assetstore.Store", trace.WithAttributes(
		attribute.String("asset.root", s.root),
		attribute.Int("asset.size", len(data)),
	))
	defer func() { telemetry.EndSpan(span, err) }()

	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, ErrTooLarge
	}

	name := SanitizeFilename(originalName)
	ext := Ext(name)
	sniffed, err := sniff(s.kind, ext, data, mimeHint)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	bucket := path.Join(s.root, now.Format("2006"), now.Format("01"), now.Format("02"))
	placedName, err := s.place(bucket, name, data)
	if err != nil {
		if errors.Is(err, ErrExhausted) {
			logging.Named("assetstore").Error("filename attempts exhausted",
				zap.String("bucket", bucket),
				zap.String("filename", name),
				zap.Int("attempts", s.maxAttempts),
			)
		}
		return nil, err
	}

	address := path.Join(bucket, placedName)
	if s.stored != nil {
		s.stored.Add(ctx, 1, metric.WithAttributes(attribute.String("asset.kind", string(s.kind))))
	}

	return &Asset{
		Address:  address,
		URL:      s.URL(address),
		Filename: placedName,
		Size:     int64(len(data)),
		Kind:     s.kind,
		MIME:     sniffed.mime,
		Width:    sniffed.width,
		Height:   sniffed.height,
		ModTime:  now,
	}, nil
}

type placement int

const (
	placed placement = iota
	collision
)

// place creates the file exclusively, retrying with numeric suffixes on collision.
func (s *Store) place(bucket, name string, data []byte) (string, error) {
	dir := s.physical(bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create asset bucket: %w", err)
	}

	base, ext := splitName(name)
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		candidate := name
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d%s", base, attempt, ext)
		}

		result, err := createExclusive(filepath.Join(dir, candidate), data)
		if err != nil {
			return "", err
		}
		if result == placed {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

func createExclusive(target string, data []byte) (placement, error) {
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return collision, nil
		}
		return collision, fmt.Errorf("create asset file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(target)
		return collision, fmt.Errorf("write asset file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(target)
		return collision, fmt.Errorf("close asset file: %w", err)
	}
	return placed, nil
}

// Rename 在同一日期目录内改名；扩展名一旦存储便不可更改。
func (s *Store) Rename(ctx context.Context, address, newName string) (newAddress string, err error) {
	_, span := telemetry.StartSpan(ctx, "assetstore.Rename")
	defer func() { telemetry.EndSpan(span, err) }()

	address, err = s.Clean(address)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(newName) == "" {
		return "", ErrInvalidName
	}
	if _, err := s.statFile(address); err != nil {
		return "", err
	}

	// 比较清洗后的名字：".png" 清洗后变成无扩展名的 "png"。
	sanitized := SanitizeFilename(newName)
	newExt := Ext(sanitized)
	if newExt == "" || !strings.EqualFold(Ext(address), newExt) {
		return "", ErrExtensionMismatch
	}

	newAddress = path.Join(path.Dir(address), sanitized)
	if newAddress == address {
		return address, nil
	}

	oldPath := s.physical(address)
	newPath := s.physical(newAddress)

	if strings.EqualFold(newAddress, address) {
		// 仅大小写不同：在大小写不敏感的文件系统上 Link 会误报冲突。
		if err := os.Rename(oldPath, newPath); err != nil {
			return "", fmt.Errorf("rename asset: %w", err)
		}
		return newAddress, nil
	}

	if err := os.Link(oldPath, newPath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", ErrNameTaken
		}
		if _, statErr := os.Lstat(newPath); statErr == nil {
			return "", ErrNameTaken
		}
		if err := os.Rename(oldPath, newPath); err != nil {
			return "", fmt.Errorf("rename asset: %w", err)
		}
		return newAddress, nil
	}

	if err := os.Remove(oldPath); err != nil {
		os.Remove(newPath)
		return "", fmt.Errorf("remove old asset name: %w", err)
	}
	return newAddress, nil
}

// Delete removes the file at address. A missing file is reported as ErrNotFound.
func (s *Store) Delete(ctx context.Context, address string) (err error) {
	_, span := telemetry.StartSpan(ctx, "assetstore.Delete")
	defer func() { telemetry.EndSpan(span, err) }()

	address, err = s.Clean(address)
	if err != nil {
		return err
	}
	if _, err := s.statFile(address); err != nil {
		return err
	}
	if err := os.Remove(s.physical(address)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

// PendingDelete holds a file moved aside by BeginDelete. Exactly one of Commit
// or Rollback must be called.
type PendingDelete struct {
	address string
	live    string
	staged  string
}

// Address returns the address being deleted.
func (p *PendingDelete) Address() string { return p.address }

// Commit removes the staged file permanently.
func (p *PendingDelete) Commit() error {
	if err := os.Remove(p.staged); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("commit asset delete: %w", err)
	}
	return nil
}

// Rollback restores the file at its original address.
func (p *PendingDelete) Rollback() error {
	if _, err := os.Lstat(p.live); err == nil {
		return ErrNameTaken
	}
	if err := os.Rename(p.staged, p.live); err != nil {
		return fmt.Errorf("rollback asset delete: %w", err)
	}
	return nil
}

// BeginDelete 将文件移到同目录下的隐藏暂存名，使调用方可以与数据库事务一起提交或回滚。
// 暂存名以点开头，SanitizeFilename 生成的文件名不会与之冲突。
func (s *Store) BeginDelete(ctx context.Context, address string) (pending *PendingDelete, err error) {
	_, span := telemetry.StartSpan(ctx, "assetstore.BeginDelete")
	defer func() { telemetry.EndSpan(span, err) }()

	address, err = s.Clean(address)
	if err != nil {
		return nil, err
	}
	if _, err := s.statFile(address); err != nil {
		return nil, err
	}

	live := s.physical(address)
	staged := filepath.Join(filepath.Dir(live), "."+uuid.NewString()+".deleting")
	if err := os.Rename(live, staged); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stage asset delete: %w", err)
	}
	return &PendingDelete{address: address, live: live, staged: staged}, nil
}

// Stat returns metadata about the file at address.
func (s *Store) Stat(address string) (*Asset, error) {
	address, err := s.Clean(address)
	if err != nil {
		return nil, err
	}
	info, err := s.statFile(address)
	if err != nil {
		return nil, err
	}
	return s.assetFromInfo(address, info), nil
}

// Exists reports whether address resolves to a stored file.
func (s *Store) Exists(address string) bool {
	_, err := s.Stat(address)
	return err == nil
}

// List 遍历根目录，返回全部资源（最新修改的在前）。
func (s *Store) List(ctx context.Context) (assets []Asset, err error) {
	_, span := telemetry.StartSpan(ctx, "assetstore.List")
	defer func() { telemetry.EndSpan(span, err) }()

	assets = []Asset{}
	walkErr := filepath.WalkDir(s.rootDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() && p != s.rootDir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.baseDir, p)
		if err != nil {
			return err
		}
		assets = append(assets, *s.assetFromInfo(filepath.ToSlash(rel), info))
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("list assets: %w", walkErr)
	}

	sort.SliceStable(assets, func(i, j int) bool {
		if !assets[i].ModTime.Equal(assets[j].ModTime) {
			return assets[i].ModTime.After(assets[j].ModTime)
		}
		return assets[i].Address > assets[j].Address
	})
	return assets, nil
}

// Clean 校验并规范化地址：拒绝 .. 片段、空字节以及根目录之外的任何路径。
func (s *Store) Clean(address string) (string, error) {
	raw := strings.TrimSpace(strings.ReplaceAll(address, "\\", "/"))
	raw = strings.TrimLeft(raw, "/")
	if raw == "" || strings.ContainsRune(raw, 0) {
		return "", ErrInvalidPath
	}
	for _, segment := range strings.Split(raw, "/") {
		if segment == ".." {
			return "", ErrInvalidPath
		}
	}

	cleaned := path.Clean(raw)
	if !strings.HasPrefix(cleaned, s.root+"/") {
		return "", ErrInvalidPath
	}

	rel, err := filepath.Rel(s.rootDir, s.physical(cleaned))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

// Resolve accepts either an address or a public URL produced by URL and returns
// the validated address.
func (s *Store) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrInvalidPath
	}

	if s.baseURL != "" && strings.HasPrefix(ref, s.baseURL+"/") {
		return s.Clean(strings.TrimPrefix(ref, s.baseURL+"/"))
	}

	if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Host != "" {
		basePath := ""
		if b, err := url.Parse(s.baseURL); err == nil {
			basePath = strings.TrimRight(b.Path, "/")
		}
		p := u.Path
		if basePath != "" {
			if !strings.HasPrefix(p, basePath+"/") {
				return "", ErrInvalidPath
			}
			p = strings.TrimPrefix(p, basePath+"/")
		}
		return s.Clean(p)
	}

	return s.Clean(ref)
}

func (s *Store) physical(address string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(address))
}

func (s *Store) statFile(address string) (fs.FileInfo, error) {
	info, err := os.Stat(s.physical(address))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat asset: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, ErrNotFound
	}
	return info, nil
}

func (s *Store) assetFromInfo(address string, info fs.FileInfo) *Asset {
	return &Asset{
		Address:  address,
		URL:      s.URL(address),
		Filename: path.Base(address),
		Size:     info.Size(),
		Kind:     s.kind,
		ModTime:  info.ModTime(),
	}
}
