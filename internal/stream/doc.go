// Package stream adapts a procio handle's read side into the shapes Go
// code usually wants to consume: an io.Reader, a line iterator, and a
// transcoding reader for children that do not emit UTF-8.
package stream
