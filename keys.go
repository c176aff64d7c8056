package refract

// KeySet is a set of upstream setting keys.
type KeySet map[string]struct{}

// Has reports whether the set contains the given key.
func (ks KeySet) Has(key string) bool {
	_, ok := ks[key]
	return ok
}

func (ks KeySet) add(key string) {
	if key != "" {
		ks[key] = struct{}{}
	}
}

// LiveKeys returns the set of all upstream setting keys the spec depends
// on: every key reachable through a rule's condition, lookup key, or
// nested group fields. A change to any live key should trigger a full
// reconversion; changes to any other key are irrelevant to this spec.
//
// LiveKeys is a pure function of the spec and recomputes on every call.
// Since specs are immutable after construction, callers holding a
// long-lived spec may cache the result; Bridge does exactly that.
func (s Spec) LiveKeys() KeySet {
	set := make(KeySet)
	s.collectLiveKeys(set)
	return set
}

func (s Spec) collectLiveKeys(set KeySet) {
	for _, rule := range s {
		switch r := rule.(type) {
		case Key:
			set.add(string(r))
		case Mapped:
			set.add(r.Condition)
			set.add(r.Key)
		case Group:
			set.add(r.Condition)
			r.Fields.collectLiveKeys(set)
		}
	}
}
