package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ===============================
// 聚合监听模式
// ===============================

// 连续写入合并为一次重新聚合
const defaultWatchDebounce = 500 * time.Millisecond

// isReportEvent 只关心单框架报告文件的变化
func isReportEvent(ev fsnotify.Event) bool {
	name := filepath.Base(ev.Name)
	if filepath.Ext(name) != ".json" || isAggregateOutput(name) {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}

// WatchReports 监听目录，报告文件变化后调用 rebuild，直到 ctx 取消。
// rebuild 失败只记录错误，继续监听。
func WatchReports(ctx context.Context, dir string, debounce time.Duration, logger *Logger, rebuild func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听失败: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("监听目录 %s 失败: %w", dir, err)
	}
	logger.Infof("👀 监听 %s 中的报告变化 (Ctrl+C 退出)", dir)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isReportEvent(ev) {
				continue
			}
			logger.Debugf("文件变化: %s (%s)", ev.Name, ev.Op)
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("⚠️ 文件监听错误: %v", err)

		case <-fire:
			fire = nil
			logger.Info("🔄 检测到报告变化，重新聚合")
			if err := rebuild(); err != nil {
				logger.Errorf("❌ 重新聚合失败: %v", err)
			}
		}
	}
}
