package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"campus_wall/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// PoolMonitor 连接池监控器：导出 sql.DBStats 指标，并按采样间隔检查等待情况
type PoolMonitor struct {
	db     *sql.DB
	config PoolMonitorConfig
	log    *zap.Logger

	mu   sync.Mutex
	last PoolSnapshot
}

// PoolMonitorConfig 连接池监控配置
type PoolMonitorConfig struct {
	MonitorInterval time.Duration
	// 打开连接数超过该值告警，0 表示不检查
	AlertThreshold int
	// 单个采样间隔内累计等待超过该值告警
	MaxWaitPerInterval time.Duration
}

// PoolSnapshot 连接池快照
type PoolSnapshot struct {
	Timestamp       time.Time
	OpenConnections int
	InUse           int
	Idle            int
	WaitCount       int64
	WaitDuration    time.Duration
}

// PoolAlert 连接池告警
type PoolAlert struct {
	Type    string
	Message string
}

func NewPoolMonitor(db *sql.DB, config PoolMonitorConfig) *PoolMonitor {
	if config.MonitorInterval <= 0 {
		config.MonitorInterval = 30 * time.Second
	}
	if config.MaxWaitPerInterval <= 0 {
		config.MaxWaitPerInterval = 5 * time.Second
	}
	return &PoolMonitor{
		db:     db,
		config: config,
		log:    logger.L().Named("db_pool"),
	}
}

// Register 注册 go_sql_* 指标，dbName 作为 db_name 标签
func (pm *PoolMonitor) Register(reg prometheus.Registerer, dbName string) error {
	return reg.Register(collectors.NewDBStatsCollector(pm.db, dbName))
}

// Start 周期采样直到 ctx 结束
func (pm *PoolMonitor) Start(ctx context.Context) {
	pm.Collect()
	ticker := time.NewTicker(pm.config.MonitorInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, alert := range pm.Collect() {
					pm.log.Warn("pool alert", zap.String("type", alert.Type), zap.String("message", alert.Message))
				}
			}
		}
	}()
}

// Collect 采样一次，返回相对上次采样触发的告警
func (pm *PoolMonitor) Collect() []PoolAlert {
	stats := pm.db.Stats()
	snapshot := PoolSnapshot{
		Timestamp:       time.Now(),
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration,
	}

	pm.mu.Lock()
	prev := pm.last
	pm.last = snapshot
	pm.mu.Unlock()

	return checkAlerts(prev, snapshot, pm.config)
}

// Last 最近一次快照
func (pm *PoolMonitor) Last() PoolSnapshot {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.last
}

// checkAlerts WaitCount/WaitDuration 是累计值，按两次采样的差值判断
func checkAlerts(prev, cur PoolSnapshot, config PoolMonitorConfig) []PoolAlert {
	var alerts []PoolAlert

	if config.AlertThreshold > 0 && cur.OpenConnections > config.AlertThreshold {
		alerts = append(alerts, PoolAlert{
			Type:    "high_connections",
			Message: fmt.Sprintf("连接数过高: %d (阈值: %d)", cur.OpenConnections, config.AlertThreshold),
		})
	}

	if wait := cur.WaitDuration - prev.WaitDuration; wait > config.MaxWaitPerInterval {
		alerts = append(alerts, PoolAlert{
			Type: "high_wait_time",
			Message: fmt.Sprintf("等待时间过长: %v, 等待次数 %d (阈值: %v)",
				wait, cur.WaitCount-prev.WaitCount, config.MaxWaitPerInterval),
		})
	}

	return alerts
}
