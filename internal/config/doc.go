// Package config defines the immutable description of one slice-to-series
// job (Spec), its validation rules, and the HCL job-file loader that builds it.
//
// A Spec is validated once by NewSpec and never mutated afterwards; workers
// read it concurrently without locking. Checks that need file contents, such
// as whether the configured metadata names exist, are deferred to variable
// classification.
package config
