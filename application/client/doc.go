/*
Package client bundles everything a key transparency client executable
needs around the protocol layer: its configuration, the message
encoders for each request type, the response verifier holding the
directory's pinned signing key, and the connection that performs one
verified round trip per call.
*/
package client
