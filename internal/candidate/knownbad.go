package candidate

// KnownBad remembers sources whose attempt failed during this run. It is
// never persisted: the on-disk tombstone is the durable record, this set only
// keeps a single run from retrying a failure that left no trace on disk.
type KnownBad struct {
	set map[string]struct{}
}

func NewKnownBad() *KnownBad {
	return &KnownBad{set: make(map[string]struct{})}
}

func (k *KnownBad) Add(path string) {
	k.set[path] = struct{}{}
}

func (k *KnownBad) Has(path string) bool {
	if k == nil {
		return false
	}
	_, ok := k.set[path]
	return ok
}

func (k *KnownBad) Len() int {
	if k == nil {
		return 0
	}
	return len(k.set)
}
