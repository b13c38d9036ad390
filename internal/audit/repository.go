package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/park285/child-safety-server-go/internal/config"
)

// ErrDisabled 는 감사 DB가 비활성일 때 반환된다.
var ErrDisabled = errors.New("verdict audit disabled")

const (
	insertBatchSize   = 100
	defaultRecentRows = 20
	maxRecentRows     = 200
	defaultDays       = 7
	maxDays           = 90
)

// Store 는 판정 감사 저장소 인터페이스다.
// 테스트에서 mock 구현을 주입할 수 있도록 한다.
type Store interface {
	// SaveBatch 판정 기록 저장 및 일별 집계 누적
	SaveBatch(ctx context.Context, records []VerdictRecord) error

	// RecentForChild 아동별 최근 판정 조회
	RecentForChild(ctx context.Context, childID string, limit int) ([]VerdictView, error)

	// DailySummaries 최근 N일 집계 조회
	DailySummaries(ctx context.Context, days int) ([]DailySummary, error)

	// Ping 연결 확인
	Ping(ctx context.Context) error

	// Close 리소스 정리
	Close()
}

// Repository가 Store 인터페이스를 구현하는지 컴파일 타임 확인
var _ Store = (*Repository)(nil)

// Repository 는 감사 DB 접근을 담당한다. 연결은 첫 사용 시점에 연다.
type Repository struct {
	cfg    *config.Config
	logger *slog.Logger
	open    func() (*gorm.DB, error)
	migrate func(*gorm.DB) error
	now     func() time.Time

	mu    sync.Mutex
	db    *gorm.DB
	sqlDB *sql.DB
}

// NewRepository 는 PostgreSQL 감사 저장소를 생성한다.
func NewRepository(cfg *config.Config, logger *slog.Logger) *Repository {
	r := &Repository{cfg: cfg, logger: logger, migrate: autoMigrate, now: time.Now}
	r.open = r.openPostgres
	return r
}

// NewRepositoryWithDialector 는 지정한 드라이버로 감사 저장소를 생성한다.
func NewRepositoryWithDialector(cfg *config.Config, dialector gorm.Dialector, logger *slog.Logger) *Repository {
	r := &Repository{cfg: cfg, logger: logger, migrate: autoMigrate, now: time.Now}
	r.open = func() (*gorm.DB, error) {
		return gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	}
	return r
}

func (r *Repository) openPostgres() (*gorm.DB, error) {
	if r.cfg == nil {
		return nil, errors.New("database config is nil")
	}
	return gorm.Open(postgres.Open(r.cfg.Database.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}

// SaveBatch 는 판정 기록을 하나의 트랜잭션으로 저장하고 일별 집계를 누적한다.
func (r *Repository) SaveBatch(ctx context.Context, records []VerdictRecord) error {
	if len(records) == 0 {
		return nil
	}
	db, err := r.getDB()
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&records, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert verdicts: %w", err)
		}
		for _, row := range aggregateDaily(records) {
			if err := upsertDaily(tx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertDaily(tx *gorm.DB, row VerdictDaily) error {
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}},
		DoUpdates: clause.Assignments(map[string]any{
			"green_count":    gorm.Expr("verdict_daily.green_count + excluded.green_count"),
			"yellow_count":   gorm.Expr("verdict_daily.yellow_count + excluded.yellow_count"),
			"red_count":      gorm.Expr("verdict_daily.red_count + excluded.red_count"),
			"fallback_count": gorm.Expr("verdict_daily.fallback_count + excluded.fallback_count"),
			"input_tokens":   gorm.Expr("verdict_daily.input_tokens + excluded.input_tokens"),
			"output_tokens":  gorm.Expr("verdict_daily.output_tokens + excluded.output_tokens"),
			"version":        gorm.Expr("verdict_daily.version + 1"),
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert verdict_daily: %w", err)
	}
	return nil
}

func aggregateDaily(records []VerdictRecord) []VerdictDaily {
	byDay := make(map[time.Time]*VerdictDaily)
	order := make([]time.Time, 0, 1)
	for _, rec := range records {
		day := dayOf(rec.CreatedAt)
		row := byDay[day]
		if row == nil {
			row = &VerdictDaily{Day: day}
			byDay[day] = row
			order = append(order, day)
		}
		switch rec.FlagLevel {
		case "green":
			row.GreenCount++
		case "yellow":
			row.YellowCount++
		case "red":
			row.RedCount++
		}
		if rec.FallbackReason != "" {
			row.FallbackCount++
		}
		row.InputTokens += rec.InputTokens
		row.OutputTokens += rec.OutputTokens
	}

	rows := make([]VerdictDaily, 0, len(order))
	for _, day := range order {
		rows = append(rows, *byDay[day])
	}
	return rows
}

// RecentForChild 는 아동의 최근 판정을 최신순으로 조회한다.
func (r *Repository) RecentForChild(ctx context.Context, childID string, limit int) ([]VerdictView, error) {
	db, err := r.getDB()
	if err != nil {
		return nil, err
	}
	limit = clampInt(limit, defaultRecentRows, maxRecentRows)

	var rows []VerdictRecord
	if err := db.WithContext(ctx).
		Where("child_id = ?", childID).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}

	views := make([]VerdictView, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.view())
	}
	return views, nil
}

// DailySummaries 는 오늘을 포함한 최근 N일 집계를 최신순으로 조회한다.
func (r *Repository) DailySummaries(ctx context.Context, days int) ([]DailySummary, error) {
	db, err := r.getDB()
	if err != nil {
		return nil, err
	}
	days = clampInt(days, defaultDays, maxDays)
	cutoff := dayOf(r.now()).AddDate(0, 0, -(days - 1))

	var rows []VerdictDaily
	if err := db.WithContext(ctx).
		Where("day >= ?", cutoff).
		Order("day desc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query verdict_daily: %w", err)
	}

	summaries := make([]DailySummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, row.summary())
	}
	return summaries, nil
}

// Ping 은 DB 연결을 확인한다.
func (r *Repository) Ping(ctx context.Context) error {
	if _, err := r.getDB(); err != nil {
		return err
	}
	r.mu.Lock()
	sqlDB := r.sqlDB
	r.mu.Unlock()
	if sqlDB == nil {
		return errors.New("audit db closed")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping audit db: %w", err)
	}
	return nil
}

// Close 는 DB 연결을 닫는다.
func (r *Repository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sqlDB == nil {
		return
	}
	_ = r.sqlDB.Close()
	r.sqlDB = nil
	r.db = nil
}

func (r *Repository) getDB() (*gorm.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return r.db, nil
	}
	if r.cfg == nil {
		return nil, errors.New("database config is nil")
	}

	db, err := r.open()
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get audit db handle: %w", err)
	}
	if err := r.migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("prepare audit db: %w", err)
	}
	dbCfg := r.cfg.Database
	if dbCfg.MinPool > 0 {
		sqlDB.SetMaxIdleConns(dbCfg.MinPool)
	}
	if dbCfg.MaxPool > 0 {
		sqlDB.SetMaxOpenConns(dbCfg.MaxPool)
	}
	if dbCfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbCfg.ConnMaxLifetimeMinutes) * time.Minute)
	}
	if dbCfg.ConnMaxIdleTimeMinutes > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(dbCfg.ConnMaxIdleTimeMinutes) * time.Minute)
	}

	if r.logger != nil {
		r.logger.Info("audit_db_connected", "dialect", db.Dialector.Name(), "name", dbCfg.Name)
	}

	r.db = db
	r.sqlDB = sqlDB
	return db, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&VerdictRecord{}, &VerdictDaily{})
}

func clampInt(value int, def int, upper int) int {
	if value <= 0 {
		return def
	}
	return min(value, upper)
}
