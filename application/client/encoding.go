package client

import (
	"github.com/keytrans-sys/keytrans-go/application"
	"github.com/keytrans-sys/keytrans-go/protocol"
)

// CreateDistinguishedMsg returns a JSON encoding of
// a protocol.DistinguishedRequest for the given stored head, which
// may be nil on the client's very first contact with the directory.
func CreateDistinguishedMsg(last []byte) ([]byte, error) {
	return application.MarshalRequest(protocol.DistinguishedType,
		&protocol.DistinguishedRequest{
			Last: last,
		})
}

// CreateSearchMsg returns a JSON encoding of the given
// protocol.SearchRequest.
func CreateSearchMsg(req *protocol.SearchRequest) ([]byte, error) {
	return application.MarshalRequest(protocol.SearchType, req)
}

// CreateMonitorMsg returns a JSON encoding of the given
// protocol.MonitorRequest.
func CreateMonitorMsg(req *protocol.MonitorRequest) ([]byte, error) {
	return application.MarshalRequest(protocol.MonitorType, req)
}
