package coordkv

// ExtendMode controls whether Lock.Lock/Queue.Get arms the background
// extender for the key they just acquired. The Python original accepts
// either a bool or a callback for this parameter (§4.4); Go's type system
// wants a concrete shape instead, so ExtendMode carries the same two cases
// explicitly.
type ExtendMode struct {
	enabled   bool
	onFailure func(key string)
}

// NoExtend disables the background extender: the caller is responsible for
// calling ExtendLock before the lease expires, or using a large timeout.
func NoExtend() ExtendMode {
	return ExtendMode{}
}

// Extend arms the background extender with no failure notification.
func Extend() ExtendMode {
	return ExtendMode{enabled: true}
}

// ExtendWithCallback arms the background extender and invokes onFailure
// with the key the first time the extender fails to re-extend the lease.
// onFailure runs on its own goroutine, outside any node I/O path.
func ExtendWithCallback(onFailure func(key string)) ExtendMode {
	return ExtendMode{enabled: true, onFailure: onFailure}
}
