// Package transport describes the commands a client sends to an
// owner and the ports and channels that carry them. An owner reads
// envelopes from a Port; a client writes requests to a Channel. The
// inproc package connects the two inside one process and the grpc
// package connects them across processes. Local connects a client
// directly to a Handler when the client is the owner.
package transport
