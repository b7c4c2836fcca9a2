package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// ===============================
// 结果存储（PostgreSQL）
// ===============================

// ResultStore 把聚合后的单元写入 PostgreSQL，便于跨批次查询
type ResultStore struct {
	db *sql.DB
}

// OpenResultStore 按 DSN 打开连接并验证连通性
func OpenResultStore(ctx context.Context, dsn string) (*ResultStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewResultStore(db), nil
}

// NewResultStore 使用已有连接
func NewResultStore(db *sql.DB) *ResultStore {
	return &ResultStore{db: db}
}

// Close closes the database connection
func (s *ResultStore) Close() error {
	return s.db.Close()
}

const createMeasurementsTable = `CREATE TABLE IF NOT EXISTS framework_measurements (
	id SERIAL PRIMARY KEY,
	batch_id UUID NOT NULL,
	framework VARCHAR(255) NOT NULL,
	page VARCHAR(32) NOT NULL,
	cache_mode VARCHAR(32) NOT NULL,
	runs INTEGER NOT NULL,
	js_transferred DOUBLE PRECISION NOT NULL,
	js_uncompressed DOUBLE PRECISION NOT NULL,
	compression_ratio INTEGER NOT NULL,
	js_to_total_ratio INTEGER NOT NULL,
	fcp DOUBLE PRECISION NOT NULL,
	lcp DOUBLE PRECISION NOT NULL,
	cls DOUBLE PRECISION NOT NULL,
	ttfb DOUBLE PRECISION NOT NULL,
	performance_score DOUBLE PRECISION NOT NULL,
	measured_at VARCHAR(64) NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT NOW()
)`

const insertMeasurement = `INSERT INTO framework_measurements (
	batch_id, framework, page, cache_mode, runs,
	js_transferred, js_uncompressed, compression_ratio, js_to_total_ratio,
	fcp, lcp, cls, ttfb, performance_score, measured_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

// EnsureSchema creates the measurements table if needed
func (s *ResultStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createMeasurementsTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// SaveCells 在一个事务里写入一批单元（中位数），任何一行失败则整体回滚
func (s *ResultStore) SaveCells(ctx context.Context, batchID string, cells []AggregatedCellStats) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertMeasurement)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cells {
		_, err = stmt.ExecContext(ctx,
			batchID, c.Framework, string(c.Page), string(c.CacheMode), c.JSTransferred.Runs,
			c.JSTransferred.Median, c.JSUncompressed.Median, c.CompressionRatio, c.JSToTotalRatio,
			c.FCP.Median, c.LCP.Median, c.CLS.Median, c.TTFB.Median, c.PerformanceScore.Median,
			c.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert %s/%s/%s: %w", c.Framework, c.Page, c.CacheMode, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
