// Defines methods/functions to encode/decode messages between client
// and directory. Currently this module supports JSON marshal/unmarshal only.

package application

import (
	"encoding/json"

	"github.com/keytrans-sys/keytrans-go/protocol"
)

// MarshalRequest returns a JSON encoding of the client's request.
func MarshalRequest(reqType int, request interface{}) ([]byte, error) {
	return json.Marshal(&protocol.Request{
		Type:    reqType,
		Request: request,
	})
}

// UnmarshalRequest parses a JSON-encoded request msg and
// creates the corresponding protocol.Request, which will be handled
// by the directory.
func UnmarshalRequest(msg []byte) (*protocol.Request, error) {
	var content json.RawMessage
	req := protocol.Request{
		Request: &content,
	}
	if err := json.Unmarshal(msg, &req); err != nil {
		return nil, err
	}
	var request interface{}
	switch req.Type {
	case protocol.DistinguishedType:
		request = new(protocol.DistinguishedRequest)
	case protocol.SearchType:
		request = new(protocol.SearchRequest)
	case protocol.MonitorType:
		request = new(protocol.MonitorRequest)
	}
	if err := json.Unmarshal(content, &request); err != nil {
		return nil, err
	}
	req.Request = request
	return &req, nil
}

// MarshalResponse returns a JSON encoding of the directory's response.
func MarshalResponse(response *protocol.Response) ([]byte, error) {
	return json.Marshal(response)
}

// UnmarshalResponse decodes the given message into a protocol.Response
// according to the given request type t. The request types are integer
// constants defined in the protocol package.
func UnmarshalResponse(t int, msg []byte) *protocol.Response {
	type Response struct {
		Error             protocol.ErrorCode
		DirectoryResponse json.RawMessage
	}
	var res Response
	if err := json.Unmarshal(msg, &res); err != nil {
		return &protocol.Response{
			Error: protocol.ErrMalformedMessage,
		}
	}

	// DirectoryResponse is omitempty for the places
	// where Error is in Errors
	if res.DirectoryResponse == nil {
		response := &protocol.Response{
			Error: res.Error,
		}
		if err := response.Validate(); err != nil {
			// we don't want to return an ErrMalformedMessage
			// if Error is in errors
			if err == protocol.ErrMalformedMessage {
				return &protocol.Response{
					Error: protocol.ErrMalformedMessage,
				}
			}
		}
		return response
	}

	switch t {
	case protocol.DistinguishedType:
		response := new(protocol.DistinguishedResponse)
		if err := json.Unmarshal(res.DirectoryResponse, &response); err != nil {
			return &protocol.Response{
				Error: protocol.ErrMalformedMessage,
			}
		}
		return &protocol.Response{
			Error:             res.Error,
			DirectoryResponse: response,
		}
	case protocol.SearchType:
		response := new(protocol.SearchResponse)
		if err := json.Unmarshal(res.DirectoryResponse, &response); err != nil {
			return &protocol.Response{
				Error: protocol.ErrMalformedMessage,
			}
		}
		return &protocol.Response{
			Error:             res.Error,
			DirectoryResponse: response,
		}
	case protocol.MonitorType:
		response := new(protocol.MonitorResponse)
		if err := json.Unmarshal(res.DirectoryResponse, &response); err != nil {
			return &protocol.Response{
				Error: protocol.ErrMalformedMessage,
			}
		}
		return &protocol.Response{
			Error:             res.Error,
			DirectoryResponse: response,
		}
	default:
		panic("Unknown request type")
	}
}
