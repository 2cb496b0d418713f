// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

const DefaultTick = 100 * time.Millisecond

type TimerTask struct {
	Id       int64
	Key      string
	Execute  time.Time
	Callback func()
	index    int
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*TimerTask)
	task.index = n
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// TimerManager keeps at most one pending task per key. Scheduling a key that
// already has a task replaces it, so a stale callback for that key never runs.
type TimerManager struct {
	queue    TimerQueue
	byKey    map[string]*TimerTask
	mutex    sync.Mutex
	nextId   int64
	tick     time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

func NewTimerManager() *TimerManager {
	return NewTimerManagerWithTick(DefaultTick)
}

// NewTimerManagerWithTick sets the polling resolution; deadlines fire at most
// one tick late.
func NewTimerManagerWithTick(tick time.Duration) *TimerManager {
	manager := &TimerManager{
		queue:  make(TimerQueue, 0),
		byKey:  make(map[string]*TimerTask),
		nextId: 1,
		tick:   tick,
		done:   make(chan struct{}),
	}
	heap.Init(&manager.queue)
	go manager.process()
	return manager
}

func (m *TimerManager) Schedule(key string, delay time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.removeLocked(key)

	task := &TimerTask{
		Id:       m.nextId,
		Key:      key,
		Execute:  time.Now().Add(delay),
		Callback: callback,
	}
	m.nextId++

	heap.Push(&m.queue, task)
	m.byKey[key] = task
	return task.Id
}

func (m *TimerManager) Cancel(key string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.removeLocked(key)
}

func (m *TimerManager) removeLocked(key string) {
	task, ok := m.byKey[key]
	if !ok {
		return
	}
	delete(m.byKey, key)
	if task.index >= 0 {
		heap.Remove(&m.queue, task.index)
	}
}

// Pending reports whether key has a task waiting to fire.
func (m *TimerManager) Pending(key string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, ok := m.byKey[key]
	return ok
}

func (m *TimerManager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}

// Stop halts the processing loop; pending tasks are dropped.
func (m *TimerManager) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *TimerManager) process() {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, task := range m.due(time.Now()) {
				go task.Callback()
			}
		case <-m.done:
			return
		}
	}
}

func (m *TimerManager) due(now time.Time) []*TimerTask {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var fired []*TimerTask
	for m.queue.Len() > 0 {
		task := m.queue[0]
		if task.Execute.After(now) {
			break
		}
		heap.Pop(&m.queue)
		if m.byKey[task.Key] == task {
			delete(m.byKey, task.Key)
		}
		fired = append(fired, task)
	}
	return fired
}
