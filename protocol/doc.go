/*
Package protocol defines the messages and error codes of the key
transparency client protocols.

protocol contains the client-side building blocks for talking to a key
transparency directory: the request and response formats for the
distinguished-head, search and monitor operations, and the error
taxonomy every layer of the client classifies its failures into.

Error

This module defines the constants representing the outcomes of a
client request and the types of errors that a transparency directory,
the transport, or the client's local store may produce while a request
is being served. Failure codes are sentinels; layers wrap them so that
callers can classify any returned error with errors.Is.

Message

This module defines the message format of the client requests
and corresponding directory responses for each protocol operation.
It also provides constructors for the response messages for each
protocol. Response payloads are opaque to the client; only the
verifier interprets them.
*/
package protocol
