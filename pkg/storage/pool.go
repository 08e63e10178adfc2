// Package storage 连接池管理与 etf_metadata 的事务性批量 UPSERT
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Factory 创建新的数据库连接
type Factory func(ctx context.Context) (*sqlx.Conn, error)

// Pool 非阻塞的简易连接池：
// - 用 slice 当作池，配合互斥锁保证并发安全
// - Acquire：池内有连接就取出，否则新建，从不等待
// - Release：池未满放回，否则关闭
// - CloseAll：关闭池内所有空闲连接
// 容量只限制保留的空闲连接数，不限制并发取用量。
// 取出的连接在归还前由调用方独占。
type Pool struct {
	mu       sync.Mutex
	idle     []*sqlx.Conn
	capacity int
	factory  Factory
}

// NewPool 创建连接池，capacity 为保留的空闲连接上限
func NewPool(capacity int, factory Factory) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		capacity: capacity,
		factory:  factory,
	}
}

// Acquire 取得连接：优先复用池内连接，否则新建
func (p *Pool) Acquire(ctx context.Context) (*sqlx.Conn, error) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	conn, err := p.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("创建数据库连接失败: %w", err)
	}
	return conn, nil
}

// Release 归还连接：池未满则放回，否则关闭避免无限增长
func (p *Pool) Release(conn *sqlx.Conn) {
	if conn == nil {
		return
	}
	p.mu.Lock()
	if len(p.idle) < p.capacity {
		p.idle = append(p.idle, conn)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	conn.Close()
}

// CloseAll 关闭池内所有空闲连接并清空池（进程结束或重启时调用）
func (p *Pool) CloseAll() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, conn := range idle {
		conn.Close()
	}
}

// IdleCount 当前池内空闲连接数
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}
