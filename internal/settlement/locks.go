package settlement

import (
	"sync"
)

// DeveloperLocks 按开发者串行化余额变更的锁表
type DeveloperLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDeveloperLocks 创建锁表
func NewDeveloperLocks() *DeveloperLocks {
	return &DeveloperLocks{locks: make(map[string]*sync.Mutex)}
}

// get 获取某开发者的互斥锁
func (d *DeveloperLocks) get(developerId string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	lock, ok := d.locks[developerId]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[developerId] = lock
	}
	return lock
}

// Lock 锁定单个开发者，返回解锁函数
func (d *DeveloperLocks) Lock(developerId string) func() {
	lock := d.get(developerId)
	lock.Lock()
	return lock.Unlock
}

// LockPair 按开发者ID的固定全序锁定两方，防止转账互锁。
// 两个ID相同（或一方为空）时退化为单锁。
func (d *DeveloperLocks) LockPair(a, b string) func() {
	if a == b || b == "" {
		return d.Lock(a)
	}
	if a == "" {
		return d.Lock(b)
	}

	first, second := a, b
	if second < first {
		first, second = second, first
	}

	firstLock := d.get(first)
	secondLock := d.get(second)
	firstLock.Lock()
	secondLock.Lock()
	return func() {
		secondLock.Unlock()
		firstLock.Unlock()
	}
}
