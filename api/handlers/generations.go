package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/api"
	"github.com/BaSui01/mediaflow/internal/history"
	"github.com/BaSui01/mediaflow/internal/metrics"
	"github.com/BaSui01/mediaflow/llm/generation"
	"github.com/BaSui01/mediaflow/llm/idempotency"
	"github.com/BaSui01/mediaflow/types"
)

// maxIdempotencyKeyLen 与 generation_records.idempotency_key 列宽一致
const maxIdempotencyKeyLen = 128

// JobStore 生成任务记录的读写
type JobStore interface {
	Create(ctx context.Context, rec *history.Record) error
	Get(ctx context.Context, id string) (*history.Record, error)
	List(ctx context.Context, f history.Filter) ([]history.Record, error)
	Fail(ctx context.Context, id string, code, message string) error
}

// JobLauncher 异步执行已受理的任务
type JobLauncher interface {
	Launch(req *types.GenerationRequest) error
}

// ResultCache 缓存已结束任务的视图
type ResultCache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// GenerationConfig 生成接口配置
type GenerationConfig struct {
	MaxBodyBytes   int64
	IdempotencyTTL time.Duration
	CacheTTL       time.Duration
}

// GenerationHandler 处理生成任务的提交与查询
type GenerationHandler struct {
	store    JobStore
	launcher JobLauncher
	idem     idempotency.Manager
	cache    ResultCache
	metrics  *metrics.Collector
	cfg      GenerationConfig
	logger   *zap.Logger
}

// NewGenerationHandler 创建 GenerationHandler；idem、cache 与 collector 可以为 nil
func NewGenerationHandler(store JobStore, launcher JobLauncher, idem idempotency.Manager, cache ResultCache,
	collector *metrics.Collector, cfg GenerationConfig, logger *zap.Logger) *GenerationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationHandler{
		store:    store,
		launcher: launcher,
		idem:     idem,
		cache:    cache,
		metrics:  collector,
		cfg:      cfg,
		logger:   logger.With(zap.String("handler", "generations")),
	}
}

// Register 在 mux 上注册路由
func (h *GenerationHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/generations", h.HandleCreate)
	mux.HandleFunc("GET /v1/generations", h.HandleList)
	mux.HandleFunc("GET /v1/generations/{id}", h.HandleGet)
}

// HandleCreate POST /v1/generations
// @Summary 提交生成任务
// @Tags 生成
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "幂等键"
// @Param request body api.CreateGenerationRequest true "生成请求"
// @Success 202 {object} Response "任务已受理"
// @Success 200 {object} Response "幂等重放，返回已有任务"
// @Failure 400 {object} Response "请求无效"
// @Failure 409 {object} Response "相同幂等键的任务正在创建"
// @Failure 422 {object} Response "幂等键被不同请求复用"
// @Router /v1/generations [post]
func (h *GenerationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var body api.CreateGenerationRequest
	if err := DecodeJSONBody(w, r, &body, h.cfg.MaxBodyBytes, h.logger); err != nil {
		return
	}

	req := body.ToDomain(uuid.NewString())
	if err := generation.Validate(req); err != nil {
		WriteError(w, r, ErrorFrom(err), h.logger)
		return
	}

	ctx := r.Context()
	key := r.Header.Get("Idempotency-Key")
	if len(key) > maxIdempotencyKeyLen {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "Idempotency-Key is too long", h.logger)
		return
	}

	if key != "" && h.idem != nil {
		replayed, done := h.reserveKey(w, r, key, &body, req.ID)
		if done || replayed {
			return
		}
	}

	rec := history.NewRecord(req, key)
	if err := h.store.Create(ctx, rec); err != nil {
		h.releaseKey(ctx, key)
		if errors.Is(err, history.ErrDuplicate) {
			WriteErrorMessage(w, r, http.StatusConflict, types.ErrDuplicateInFlight,
				"a generation with this Idempotency-Key already exists", h.logger)
			return
		}
		WriteError(w, r, types.NewError(types.ErrInternalError, "failed to create generation").WithCause(err), h.logger)
		return
	}

	if err := h.launcher.Launch(req); err != nil {
		h.releaseKey(ctx, key)
		if ferr := h.store.Fail(ctx, req.ID, string(types.ErrServiceUnavailable), err.Error()); ferr != nil {
			h.logger.Error("failed to mark rejected generation", zap.String("id", req.ID), zap.Error(ferr))
		}
		WriteError(w, r, types.NewError(types.ErrServiceUnavailable, "server is shutting down").
			WithCause(err).
			WithHTTPStatus(http.StatusServiceUnavailable).
			WithRetryable(true), h.logger)
		return
	}

	h.logger.Info("generation accepted",
		zap.String("id", req.ID),
		zap.String("modality", string(req.Modality)),
		zap.String("provider", string(req.Provider)),
		zap.Int("variant_count", req.VariantCount),
	)

	job, _ := api.JobFromRecord(rec)
	w.Header().Set("Location", "/v1/generations/"+req.ID)
	WriteStatus(w, r, http.StatusAccepted, job)
}

// reserveKey 占用幂等键。replayed 表示已写出已有任务；done 表示已写出错误。
func (h *GenerationHandler) reserveKey(w http.ResponseWriter, r *http.Request, key string, body *api.CreateGenerationRequest, id string) (replayed, done bool) {
	ctx := r.Context()
	fp, err := h.idem.Fingerprint(body)
	if err != nil {
		WriteError(w, r, types.NewInvalidRequestError("cannot fingerprint request").WithCause(err), h.logger)
		return false, true
	}

	entry, reserved, err := h.idem.Reserve(ctx, key, idempotency.Entry{JobID: id, Fingerprint: fp}, h.cfg.IdempotencyTTL)
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrServiceUnavailable, "idempotency store unavailable").
			WithCause(err).
			WithHTTPStatus(http.StatusServiceUnavailable).
			WithRetryable(true), h.logger)
		return false, true
	}
	if reserved {
		return false, false
	}

	if entry.Fingerprint != fp {
		WriteErrorMessage(w, r, http.StatusUnprocessableEntity, types.ErrInvalidRequest,
			"Idempotency-Key was already used with a different request", h.logger)
		return false, true
	}

	rec, err := h.store.Get(ctx, entry.JobID)
	if errors.Is(err, history.ErrNotFound) {
		WriteErrorMessage(w, r, http.StatusConflict, types.ErrDuplicateInFlight,
			"a generation with this Idempotency-Key is being created", h.logger)
		return false, true
	}
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError, "failed to load generation").WithCause(err), h.logger)
		return false, true
	}

	job, err := api.JobFromRecord(rec)
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError, "failed to decode generation").WithCause(err), h.logger)
		return false, true
	}
	w.Header().Set("Idempotent-Replayed", "true")
	WriteSuccess(w, r, job)
	return true, false
}

func (h *GenerationHandler) releaseKey(ctx context.Context, key string) {
	if key == "" || h.idem == nil {
		return
	}
	if err := h.idem.Release(ctx, key); err != nil {
		h.logger.Warn("failed to release idempotency key", zap.Error(err))
	}
}

// HandleGet GET /v1/generations/{id}
// @Summary 查询生成任务
// @Tags 生成
// @Produce json
// @Param id path string true "任务 ID"
// @Success 200 {object} Response "任务状态"
// @Failure 404 {object} Response "任务不存在"
// @Router /v1/generations/{id} [get]
func (h *GenerationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if id == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "generation id is required", h.logger)
		return
	}

	cacheKey := "generation:" + id
	if h.cache != nil {
		var job api.GenerationJob
		if err := h.cache.GetJSON(ctx, cacheKey, &job); err == nil {
			h.metrics.RecordCacheHit("generation")
			WriteSuccess(w, r, job)
			return
		}
		h.metrics.RecordCacheMiss("generation")
	}

	rec, err := h.store.Get(ctx, id)
	if errors.Is(err, history.ErrNotFound) {
		WriteErrorMessage(w, r, http.StatusNotFound, types.ErrJobNotFound, "generation not found", h.logger)
		return
	}
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError, "failed to load generation").WithCause(err), h.logger)
		return
	}

	job, err := api.JobFromRecord(rec)
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError, "failed to decode generation").WithCause(err), h.logger)
		return
	}

	if h.cache != nil && rec.Status.Terminal() {
		if err := h.cache.SetJSON(ctx, cacheKey, job, h.cfg.CacheTTL); err != nil {
			h.logger.Warn("failed to cache generation", zap.String("id", id), zap.Error(err))
		}
	}
	WriteSuccess(w, r, job)
}

// HandleList GET /v1/generations
// @Summary 列出生成任务
// @Tags 生成
// @Produce json
// @Param modality query string false "按模态过滤"
// @Param status query string false "按状态过滤"
// @Param limit query int false "返回条数（1-100）"
// @Success 200 {object} Response "任务列表"
// @Router /v1/generations [get]
func (h *GenerationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := history.Filter{
		Modality: types.Modality(q.Get("modality")),
		Status:   history.Status(q.Get("status")),
	}
	if filter.Modality != "" && !filter.Modality.Valid() {
		WriteError(w, r, types.NewInvalidRequestError("unknown modality %q", filter.Modality), h.logger)
		return
	}
	switch filter.Status {
	case "", history.StatusPending, history.StatusRunning, history.StatusSucceeded, history.StatusFailed:
	default:
		WriteError(w, r, types.NewInvalidRequestError("unknown status %q", filter.Status), h.logger)
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			WriteError(w, r, types.NewInvalidRequestError("limit must be a positive integer"), h.logger)
			return
		}
		filter.Limit = n
	}

	recs, err := h.store.List(r.Context(), filter)
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError, "failed to list generations").WithCause(err), h.logger)
		return
	}

	list := api.GenerationJobList{Items: make([]api.GenerationJob, 0, len(recs))}
	for i := range recs {
		job, err := api.JobFromRecord(&recs[i])
		if err != nil {
			h.logger.Warn("skipping undecodable generation", zap.String("id", recs[i].ID), zap.Error(err))
			continue
		}
		list.Items = append(list.Items, job)
	}
	list.Count = len(list.Items)
	WriteSuccess(w, r, list)
}
