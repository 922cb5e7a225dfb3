// Package review holds the domain model of the collector: records and their
// identity keys, the dedup set, the filter chain, page signatures, and the
// termination policy. Everything here is pure and single-owner; the
// collection loop in internal/collector is the only mutator of session state.
package review
