package handler

import (
	"time"

	"github.com/sitecms/internal/assetstore"
	"github.com/sitecms/internal/cache"
	"github.com/sitecms/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db        *gorm.DB
	cache     *cache.Cache
	media     *service.MediaService
	files     *service.FileService
	posts     *service.PostService
	query     *service.PostQueryService
	taxonomy  *service.TaxonomyService
	team      *service.TeamService
	careers   *service.CareerService
	auth      *service.AuthService
	dashboard *service.DashboardService
	limiter   *LoginLimiter
	maxUpload int64
}

// Options 汇总构造 API 所需的外部依赖。
type Options struct {
	DB             *gorm.DB
	Cache          *cache.Cache
	MediaStore     *assetstore.Store
	FileStore      *assetstore.Store
	RelatedLimit   int
	TokenTTL       time.Duration
	MaxUploadBytes int64
	Limiter        *LoginLimiter
}

// NewAPI constructs a handler set with shared services.
func NewAPI(opts Options) *API {
	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewLoginLimiter(DefaultLoginAttempts, time.Minute)
	}

	query := service.NewPostQueryService(opts.DB, opts.RelatedLimit)

	return &API{
		db:        opts.DB,
		cache:     opts.Cache,
		media:     service.NewMediaService(opts.DB, opts.MediaStore),
		files:     service.NewFileService(opts.FileStore),
		posts:     service.NewPostService(opts.DB, opts.Cache),
		query:     query,
		taxonomy:  service.NewTaxonomyService(opts.DB, opts.Cache),
		team:      service.NewTeamService(opts.DB),
		careers:   service.NewCareerService(opts.DB, opts.FileStore),
		auth:      service.NewAuthService(opts.DB, opts.TokenTTL),
		dashboard: service.NewDashboardService(opts.DB, query),
		limiter:   limiter,
		maxUpload: opts.MaxUploadBytes,
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}
