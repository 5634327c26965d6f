// Package obs provides the structured logger used throughout nbproc: a
// small, dependency-free level/field logger in the same shape used across
// this repository's ambient plumbing (supervisor exit notices, launch
// failures, CLI diagnostics).
package obs
