package clock

import (
	"sync"
	"time"
)

// Clock 当前时间来源。调度与缓存逻辑只通过它取“现在”，测试注入固定时间。
type Clock interface {
	Now() time.Time
}

// System 系统时钟
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed 可手动推进的时钟，用于测试和离线重算
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set 设置当前时间
func (f *Fixed) Set(now time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

// Advance 向前推进 d
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
