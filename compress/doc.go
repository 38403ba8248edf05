// Package compress shrinks old conversation turns to keep a long-running
// game inside its context budget.
//
// Three pieces cooperate:
//
//   - Compressor turns a single conversation turn into a shorter,
//     meaning-preserving form through the model capability. Intensity is
//     selected by the turn's content class: narrative prose compresses
//     aggressively, combat narration moderately (quantitative outcomes must
//     survive), structured state data is never compressed.
//
//   - Cache memoizes compression results by a hash of the turn content and
//     the active instructions, so identical content never costs a second
//     model call. It is bounded, evicts oldest-inserted first, and is the
//     sole synchronization point between workers.
//
//   - Engine fans a backlog of eligible turns out to a fixed-size worker
//     pool and reassembles results in original sequence order. One
//     best-effort pass per turn: failures leave the turn verbatim, flagged
//     deferred, and retried with backoff on a later pass.
//
// Compression is a maintenance activity. It never reorders turns, never
// drops a turn, and never crosses a module transition boundary.
package compress
