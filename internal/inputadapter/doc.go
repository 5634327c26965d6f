// Package inputadapter feeds a handle's write side from a producer,
// either a channel of buffers (FromChan) or a pull function (FromFunc),
// and closes the write direction once the producer is exhausted.
package inputadapter
