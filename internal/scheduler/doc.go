// Package scheduler decides which worker writes which series file.
//
// # Why Scheduler Exists
//
// Every payload variable becomes one output file, and every output file must
// be written by exactly one worker. The scheduler computes that ownership
// once, before any worker writes, so workers never coordinate during the
// write phase.
//
// # How It Works
//
// The partition is a greedy bin-packing heuristic:
//  1. Estimate each variable's size as its element count per record
//  2. Sort variables by estimate, largest first, ties by original order
//  3. Give each variable to the worker with the smallest running load,
//     ties to the lowest worker index
//
// The result depends only on the variable list and the worker count, so
// every worker computes the same assignment independently.
//
// Balance only affects wall-clock time. Output contents never depend on
// which worker wrote a file.
package scheduler
