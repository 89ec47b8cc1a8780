// Package engine owns the headless Chrome process shared by all conversions.
//
// One browser is launched lazily on first use (or eagerly via Acquire at
// startup) and reused by every request. Each render step gets its own
// incognito browser context, so pages never share cookies, storage or DOM.
// The number of open contexts is bounded; callers beyond the ceiling wait.
//
// When the browser dies or stops answering, the handle is discarded and the
// next Acquire launches a replacement. Launching is serialized: concurrent
// callers observe a single launch and share the resulting handle.
package engine
