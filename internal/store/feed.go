package store

import "sync"

// Feed is a fan-out ChangeFeed for adapters that produce their own change
// notifications. The zero value is ready to use.
type Feed struct {
	mu       sync.Mutex
	next     int
	watchers map[int]func(ChangeBatch)
}

// Watch registers fn; the returned func detaches it.
func (f *Feed) Watch(fn func(ChangeBatch)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watchers == nil {
		f.watchers = make(map[int]func(ChangeBatch))
	}
	id := f.next
	f.next++
	f.watchers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.watchers, id)
		})
	}
}

// Emit delivers batch to every watcher on the calling goroutine.
func (f *Feed) Emit(batch ChangeBatch) {
	f.mu.Lock()
	watchers := make([]func(ChangeBatch), 0, len(f.watchers))
	for _, fn := range f.watchers {
		watchers = append(watchers, fn)
	}
	f.mu.Unlock()

	for _, fn := range watchers {
		fn(batch)
	}
}

// Len returns the number of attached watchers.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers)
}
