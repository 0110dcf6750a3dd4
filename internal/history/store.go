package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/mediaflow/internal/metrics"
	"github.com/BaSui01/mediaflow/types"
)

// Status 生成任务状态
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Terminal 报告任务是否已结束
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("generation record not found")
	// ErrDuplicate 幂等键已被其他记录占用
	ErrDuplicate = errors.New("idempotency key already used")
)

// Record 一次生成请求的持久化记录，与 generation_records 表一一对应
type Record struct {
	ID             string     `gorm:"primaryKey;size:64" json:"id"`
	IdempotencyKey *string    `gorm:"size:128;uniqueIndex:idx_generation_records_idempotency_key" json:"-"`
	Modality       string     `gorm:"size:16;not null;index:idx_generation_records_modality" json:"modality"`
	Provider       string     `gorm:"size:32;not null" json:"provider"`
	Model          string     `gorm:"size:128" json:"model,omitempty"`
	Prompt         string     `gorm:"type:text" json:"prompt"`
	VariantCount   int        `gorm:"not null;default:1" json:"variant_count"`
	Status         Status     `gorm:"size:16;not null;index:idx_generation_records_status" json:"status"`
	UsedFallback   bool       `gorm:"not null;default:false" json:"used_fallback"`
	ErrorCode      string     `gorm:"size:64" json:"error_code,omitempty"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	Result         string     `gorm:"type:text" json:"-"`
	CreatedAt      time.Time  `gorm:"index:idx_generation_records_created_at" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// TableName 表名
func (Record) TableName() string {
	return "generation_records"
}

// NewRecord 从请求构造 PENDING 记录；key 为空表示未携带幂等键
func NewRecord(req *types.GenerationRequest, key string) *Record {
	rec := &Record{
		ID:           req.ID,
		Modality:     string(req.Modality),
		Provider:     string(req.Provider),
		Model:        req.Model,
		Prompt:       req.Prompt,
		VariantCount: req.VariantCount,
		Status:       StatusPending,
	}
	if key != "" {
		rec.IdempotencyKey = &key
	}
	return rec
}

// DecodeResult 解析已完成记录的结果；未完成时返回 nil
func (r *Record) DecodeResult() (*types.GenerationResult, error) {
	if r.Result == "" {
		return nil, nil
	}
	var res types.GenerationResult
	if err := json.Unmarshal([]byte(r.Result), &res); err != nil {
		return nil, fmt.Errorf("decode result of %s: %w", r.ID, err)
	}
	return &res, nil
}

// Filter 列表查询条件，零值字段不参与过滤
type Filter struct {
	Modality types.Modality
	Status   Status
	Limit    int
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Store 基于 GORM 的生成记录存储
type Store struct {
	db      *gorm.DB
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewStore 创建存储；collector 可以为 nil
func NewStore(db *gorm.DB, collector *metrics.Collector, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:      db,
		metrics: collector,
		logger:  logger.With(zap.String("component", "history")),
	}
}

// AutoMigrate 建表。仅用于 sqlite，postgres 走 migration 包的版本化迁移
func (s *Store) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("failed to auto migrate generation records: %w", err)
	}
	return nil
}

// Create 插入新记录
func (s *Store) Create(ctx context.Context, rec *Record) error {
	err := s.observe("create", func() error {
		return s.db.WithContext(ctx).Create(rec).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// MarkRunning 将 PENDING 记录置为 RUNNING
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	return s.update(ctx, "mark_running", id, map[string]any{
		"status": StatusRunning,
	})
}

// Complete 写入成功结果
func (s *Store) Complete(ctx context.Context, id string, result *types.GenerationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result of %s: %w", id, err)
	}
	return s.update(ctx, "complete", id, map[string]any{
		"status":        StatusSucceeded,
		"used_fallback": result.UsedFallback,
		"result":        string(data),
		"completed_at":  time.Now(),
	})
}

// Fail 写入失败原因
func (s *Store) Fail(ctx context.Context, id string, code, message string) error {
	return s.update(ctx, "fail", id, map[string]any{
		"status":        StatusFailed,
		"error_code":    code,
		"error_message": message,
		"completed_at":  time.Now(),
	})
}

// Get 按 ID 查询
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := s.observe("get", func() error {
		return s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByIdempotencyKey 按幂等键查询
func (s *Store) GetByIdempotencyKey(ctx context.Context, key string) (*Record, error) {
	var rec Record
	err := s.observe("get_by_key", func() error {
		return s.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&rec).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List 按创建时间倒序列出记录
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var recs []Record
	err := s.observe("list", func() error {
		q := s.db.WithContext(ctx).Model(&Record{})
		if f.Modality != "" {
			q = q.Where("modality = ?", string(f.Modality))
		}
		if f.Status != "" {
			q = q.Where("status = ?", string(f.Status))
		}
		return q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&recs).Error
	})
	return recs, err
}

func (s *Store) update(ctx context.Context, op, id string, fields map[string]any) error {
	var affected int64
	err := s.observe(op, func() error {
		res := s.db.WithContext(ctx).Model(&Record{}).Where("id = ?", id).Updates(fields)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		s.logger.Error("failed to update generation record",
			zap.String("id", id), zap.String("op", op), zap.Error(err))
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) observe(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.RecordDBQuery(s.db.Dialector.Name(), op, time.Since(start))
	return err
}
