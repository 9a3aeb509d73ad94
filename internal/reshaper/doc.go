// Package reshaper turns a time-ordered set of slice files into one series
// file per payload variable.
//
// # How It Works
//
// Every worker runs the same pipeline against its own input handles:
//  1. Open every input and classify the first input's variables
//  2. Check every other input against the first
//  3. Compute the static assignment of payload variables to workers
//  4. Agree with the other workers that setup succeeded (first sync point)
//  5. Write each assigned series file: shared header, static variables,
//     then the records of every input in input order
//  6. Exchange diagnostics with the other workers (second sync point)
//
// Failures writing one output are recorded and the worker moves on to its
// next variable. Failures reading an input abort the whole job because the
// shared metadata can no longer be trusted.
package reshaper
