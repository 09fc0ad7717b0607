package loadcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The loader calls them on hot paths.
type Hooks interface {
	// A batch of size unique keys was sent to the store.
	BatchDispatched(namespace string, size int)

	// A store operation failed. op ∈ {"mget", "set", "del"}; keys is the
	// number of keys that saw the error.
	StoreError(op string, keys int, err error)

	// A value was written but its TTL could not be applied.
	ExpireFailed(storageKey string, err error)

	// A written value was gone on read-back (evicted or deleted in between);
	// the load returned null.
	WriteLost(storageKey string)

	// The BatchFunc failed for keys keys (whole call or individual results).
	LoaderFailed(namespace string, keys int, err error)

	// A stored payload could not be decoded.
	DecodeFailed(storageKey string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) BatchDispatched(string, int)     {}
func (NopHooks) StoreError(string, int, error)   {}
func (NopHooks) ExpireFailed(string, error)      {}
func (NopHooks) WriteLost(string)                {}
func (NopHooks) LoaderFailed(string, int, error) {}
func (NopHooks) DecodeFailed(string, error)      {}
