package memory

import "sync"

// Op names a store operation for failure injection.
type Op string

const (
	OpList      Op = "list"
	OpGet       Op = "get"
	OpCreate    Op = "create"
	OpUpdate    Op = "update"
	OpDelete    Op = "delete"
	OpSetRaw    Op = "set_raw"
	OpGetRaw    Op = "get_raw"
	OpSubscribe Op = "subscribe"
)

type faults struct {
	mu     sync.Mutex
	errs   map[string]error
	counts map[string]int
}

func faultKey(op Op, id string) string {
	return string(op) + "\x00" + id
}

// set makes op fail with err. An empty id matches every id. times <= 0 means
// until cleared.
func (f *faults) set(op Op, id string, err error, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[string]error)
		f.counts = make(map[string]int)
	}
	k := faultKey(op, id)
	f.errs[k] = err
	f.counts[k] = times
}

func (f *faults) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = nil
	f.counts = nil
}

func (f *faults) check(op Op, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range []string{faultKey(op, id), faultKey(op, "")} {
		err, ok := f.errs[k]
		if !ok {
			continue
		}
		if n := f.counts[k]; n > 0 {
			if n == 1 {
				delete(f.errs, k)
				delete(f.counts, k)
			} else {
				f.counts[k] = n - 1
			}
		}
		return err
	}
	return nil
}
