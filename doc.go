/*
Package sse consumes HTML5 server-sent event streams without gaps.

A Client connects to a single stream URL and keeps reconnecting to it. Each new
connection carries a Last-Event-ID header with the ID of the last event received
so far, so a server that supports resumption continues right after it. Events
are delivered in the order they were received, and a connection is never opened
before the previous one is finished.

The stream can be consumed as a single sequence of events:

	events, errf := client.Events(ctx)
	for ev := range events {
		fmt.Println(ev.ID, ev.Data)
	}
	if err := errf(); err != nil {
		// the context is done, or the client stopped by itself
	}

with a callback, using Client.Start, or one connection at a time, using Run.

Failures of a single connection, like network errors, unexpected responses or
streams that end in the middle of an event, don't stop the Client: they are
passed to its ErrorHandler, which decides whether to reconnect. Reconnections
can be paced with a Backoff, which also honors the retry field sent by servers.

Read parses an event stream from any io.Reader, without reconnecting.
*/
package sse
