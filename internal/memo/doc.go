// Package memo memoizes expensive function calls.
//
// Cache wraps a synchronous function. AsyncCache wraps a context-aware
// function and additionally coalesces concurrent calls that share a key into
// a single execution.
//
// Both variants share the same storage policy:
//
//   - Keys are derived from the argument by Options.KeyFunc (canonical JSON by
//     default, see DefaultKey).
//   - At most Options.MaxSize entries are resident (100 by default). When a
//     new key would exceed the bound, the earliest inserted key is evicted.
//     Eviction is FIFO: reading an entry does not move it.
//   - When Options.TTL is set, an entry older than the TTL is treated as
//     absent on the next access and recomputed. Nothing sweeps in the
//     background.
//   - Errors are never cached. The next call with the same argument invokes
//     the function again.
//
// All methods are safe for concurrent use.
package memo
