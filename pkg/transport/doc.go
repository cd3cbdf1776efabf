// Package transport defines the socket abstraction the eventsd client runs on.
//
// The subscription client never touches the network itself. It asks a
// Transport to open a Socket towards a Target and reacts to the notifications
// the socket delivers through a Handler:
//   - OnOpen: the connection is ready for frames
//   - OnReconnectAttempt: the socket is about to retry after a loss
//   - OnMessage: a frame arrived from the server
//   - OnDisconnect: the connection closed
//   - OnError: the socket gave up and will not recover on its own
//
// Frames are one-way: a verb plus a payload. The client sends VerbBind and
// VerbUnbind; the server pushes VerbEvent. There are no acknowledgements.
//
// Implementations must deliver all notifications of one socket from a single
// goroutine, in order, and must never call the Handler synchronously from
// Open, Emit or Close.
package transport
