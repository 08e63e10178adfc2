package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ETFEngine/pkg/database"
)

// Handlers API处理器集合
type Handlers struct {
	db *database.DB
}

// NewHandlers 创建API处理器
func NewHandlers(db *database.DB) *Handlers {
	return &Handlers{db: db}
}

// HealthCheck 进程存活探针
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ReadinessCheck 就绪探针：确认数据库可用
func (h *Handlers) ReadinessCheck(c *gin.Context) {
	if err := h.db.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// ListETFs 返回已入库的ETF元数据列表
func (h *Handlers) ListETFs(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	rows, err := h.db.List(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(rows),
		"data":  rows,
	})
}

// GetETF 按证券代号返回单条元数据
func (h *Handlers) GetETF(c *gin.Context) {
	symbol := c.Param("symbol")
	row, err := h.db.GetBySymbol(symbol)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, row)
}

// ScanStatus 返回入库规模摘要
func (h *Handlers) ScanStatus(c *gin.Context) {
	count, err := h.db.Count()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"records": count,
	})
}
