// Package testutil generates synthetic slice files and reads outputs back
// for tests.
package testutil
