// Package service ETF 扫描流程编排：列表 → 逐笔商品内容 → 规范化 → 入库
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"ETFEngine/pkg/collector"
	"ETFEngine/pkg/messaging"
	"ETFEngine/pkg/model"
	"ETFEngine/pkg/normalizer"
)

// Upserter 批量入库接口（由 storage.Store 实现）
type Upserter interface {
	UpsertBatch(ctx context.Context, records []model.ETFMetadata) (int64, error)
}

// EventPublisher 事件发布接口（由 messaging.Publisher 实现，可为空）
type EventPublisher interface {
	Publish(subject string, payload interface{}) error
}

// Result 一次扫描的汇总
type Result struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Parsed    int           `json:"parsed"`
	Skipped   int           `json:"skipped"`
	Affected  int64         `json:"affected"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Scanner 扫描器：单线程逐笔处理，带限速与逐笔错误隔离
type Scanner struct {
	symbols   collector.SymbolSource
	details   collector.DetailSource
	store     Upserter
	publisher EventPublisher
	limiter   *rate.Limiter
}

// NewScanner 创建扫描器
// delay 为逐笔请求间隔（0 表示不限速），publisher 可为 nil
func NewScanner(symbols collector.SymbolSource, details collector.DetailSource, store Upserter, publisher EventPublisher, delay time.Duration) *Scanner {
	var limiter *rate.Limiter
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return &Scanner{
		symbols:   symbols,
		details:   details,
		store:     store,
		publisher: publisher,
		limiter:   limiter,
	}
}

// Run 执行一次完整扫描：
// - 单个代码的抓取/解析失败只跳过该代码，不中止整体
// - 解析成功的记录累积后整批 UPSERT，入库失败保留暂存下轮重试
// - stat 非 OK（如代码暂不可用）按跳过处理
func (s *Scanner) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := logrus.WithField("run_id", result.RunID)

	symbols, err := s.symbols.FetchSymbols()
	if err != nil {
		return nil, fmt.Errorf("获取ETF代码列表失败: %w", err)
	}
	result.Total = len(symbols)
	log.Infof("ETF 代码数: %d", len(symbols))

	if len(symbols) == 0 {
		log.Warn("ETF 代码清单为空")
		result.Elapsed = time.Since(result.StartedAt)
		return result, nil
	}

	var pending []model.ETFMetadata
	for i, code := range symbols {
		if err := s.pace(ctx); err != nil {
			return result, err
		}

		detail, err := s.details.FetchDetail(code)
		if err != nil {
			result.Skipped++
			if errors.Is(err, collector.ErrRemoteRejection) {
				log.Warnf("代码暂不可用，跳过 code=%s: %v", code, err)
			} else {
				log.Errorf("抓取失败，跳过 code=%s: %v", code, err)
			}
			continue
		}

		record, sources, err := normalizer.ParseProductContent(detail)
		if err != nil {
			result.Skipped++
			log.Errorf("解析失败，跳过 code=%s: %v", code, err)
			continue
		}
		for field, usedDefault := range sources {
			if usedDefault {
				log.Debugf("字段回退默认值 code=%s field=%s", code, field)
			}
		}

		pending = append(pending, *record)
		result.Parsed++
		log.Infof("%d/%d 已解析: %s -> %s", i+1, len(symbols), code, record.ShortName)

		affected, err := s.store.UpsertBatch(ctx, pending)
		if err != nil {
			// 整批已回滚，暂存保留，随下一条记录一并重试
			log.Errorf("入库失败 code=%s: %v", code, err)
			continue
		}
		result.Affected += affected
		s.publishUpdated(log, result.RunID, pending, affected)
		pending = pending[:0]
	}

	result.Elapsed = time.Since(result.StartedAt)
	log.Infof("扫描完成: 解析 %d, 跳过 %d, 影响行数 %d, 耗时 %s",
		result.Parsed, result.Skipped, result.Affected, result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// pace 逐笔限速，ctx 取消时立刻返回
func (s *Scanner) pace(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("扫描被中止: %w", err)
	}
	return nil
}

// publishUpdated 发布入库成功事件，失败仅记日志，不影响扫描
func (s *Scanner) publishUpdated(log *logrus.Entry, runID string, records []model.ETFMetadata, affected int64) {
	if s.publisher == nil {
		return
	}
	symbols := make([]string, len(records))
	for i, r := range records {
		symbols[i] = r.Symbol
	}
	event := messaging.MetadataUpdatedEvent{
		RunID:     runID,
		Symbols:   symbols,
		Affected:  affected,
		Timestamp: time.Now(),
	}
	if err := s.publisher.Publish(messaging.SubjectMetadataUpdated, event); err != nil {
		log.Warnf("发布更新事件失败: %v", err)
	}
}
