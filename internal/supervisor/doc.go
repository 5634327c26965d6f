// Package supervisor is a process-wide cleanup collaborator: it tracks
// every handle it starts and guarantees, on Shutdown, that each is sent
// SIGTERM, given a grace period, then SIGKILLed and reaped, so that no
// child is left a zombie.
//
// It never touches procio's internals directly — every operation here is
// one of the exported procio.ExecContext operations, the same contract any
// other collaborator is held to.
package supervisor
