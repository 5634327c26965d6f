// Package jobspec loads a launch request — the argv, environment,
// working directory, and stderr disposition to hand to procio.Execute —
// from either a plain JSON file or a scripted .lua file that computes
// those fields at load time.
package jobspec
