package zone

// zoneSymbolPrefix namespaces every key this package stashes on the host
// global, so patched public names never collide with the originals they
// replace.
const zoneSymbolPrefix = "__zone_symbol__"

// Symbol mints the namespaced key for name.
//
// Patch modules use minted symbols to stash original host references (the
// unpatched timer primitives, the native deferred scheduler) where the
// microtask engine can still reach them after the public names have been
// replaced.
func Symbol(name string) string {
	return zoneSymbolPrefix + name
}
