// Package zipray analyzes classic (non-ZIP64) ZIP archives and produces a structured report of every stored
// member: sizes, compression method, CRC-32, and aggregate statistics.
//
// Analyze is the top-level entry point. It locates the end-of-central-directory record, walks the central
// directory, then verifies each entry's integrity on a bounded pool of decode workers: Store entries are
// copied through a CRC-32, Deflate entries are inflated, and the observed size and checksum are compared
// against the claims in the central directory. Memory stays bounded by a tiered buffer pool whose free budget
// throttles how much work is admitted at once.
package zipray
