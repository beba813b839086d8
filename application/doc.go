/*
Package application is a library for building key transparency clients
and test directories that speak the same wire format.

application implements the application-layer components of the key
transparency lookup and monitoring system. More specifically,
application provides an API for building client executables and the
supporting tooling around them.

Encoding

This module implements the message encoding and decoding for
client-directory communications. Currently this module only supports
JSON encoding.

Config

This module provides the generic configuration layer shared by all
executables: a common config type, pluggable config encodings, and
helpers for loading key material referenced from a config file.

Logger

This module implements a generic logging system that can be used by any
application/executable.
*/
package application
