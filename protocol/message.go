// Defines the message format of the key transparency protocols
// and constructors for the response messages for each
// protocol

package protocol

import "github.com/google/uuid"

// The types of requests clients send during the key transparency
// protocols.
const (
	DistinguishedType = iota
	SearchType
	MonitorType
)

// Sizes of the fixed-length request fields in bytes.
const (
	// IdentityKeySizeByte is the length of a serialized public identity
	// key: one type byte followed by the key material.
	IdentityKeySizeByte = 33
	// AccessKeySizeByte is the length of an unidentified-access key.
	AccessKeySizeByte = 16
	// UsernameHashSizeByte is the length of a hashed username.
	UsernameHashSizeByte = 32
)

// An ACI is the account identifier a transparency directory indexes
// account state by.
type ACI = uuid.UUID

// A Request message defines the data a client must send to a
// transparency directory for a particular request.
type Request struct {
	Type    int
	Request interface{}
}

// An E164Info pairs a phone number in E.164 format with the
// unidentified-access key authorizing its lookup. A request either
// carries both or carries neither.
type E164Info struct {
	E164                  string
	UnidentifiedAccessKey []byte
}

// A DistinguishedRequest is a message that a client sends to a
// transparency directory to obtain its latest distinguished tree head.
// Last is the head this client most recently verified; the directory
// proves consistency from Last to the returned head. A nil Last asks
// for the head alone, which is how a client bootstraps an empty store.
//
// The response to a successful request is a DistinguishedResponse.
type DistinguishedRequest struct {
	Last []byte
}

// A SearchRequest is a message that a client sends to a transparency
// directory to retrieve the current identity data of one account,
// together with the proofs needed to verify it against
// DistinguishedHead.
//
// Prior carries the opaque account state from the client's previous
// verified search of the same account, if any. E164 and UsernameHash
// extend the search to the account's other identifiers; both are
// optional and absent when nil. An empty non-nil value is sent as is,
// it never means absent.
//
// The response to a successful request is a SearchResponse.
type SearchRequest struct {
	ACI               ACI
	IdentityKey       []byte
	E164              *E164Info `json:",omitempty"`
	UsernameHash      []byte
	Prior             []byte
	DistinguishedHead []byte
}

// A MonitorRequest is a message that a client sends to a transparency
// directory to verify that a previously searched account's history has
// been extended consistently. Its fields mirror SearchRequest.
//
// Prior must carry the account state of a previous verified search or
// monitor; a client that has never searched the account may not
// monitor it, and the directory rejects such requests.
//
// The response to a successful request is a MonitorResponse. A
// directory that cannot extend the account's history responds with
// ReqChangeDetected instead, telling the client to run a full search.
type MonitorRequest struct {
	ACI               ACI
	IdentityKey       []byte
	E164              *E164Info `json:",omitempty"`
	UsernameHash      []byte
	Prior             []byte
	DistinguishedHead []byte
}

// A Response message indicates the result of a client request
// with an appropriate error code, and carries the payload a
// transparency directory returns as part of its response.
type Response struct {
	Error             ErrorCode
	DirectoryResponse `json:",omitempty"`
}

// A DirectoryResponse is the payload that a transparency directory
// returns to a client. Clients treat every payload field as opaque;
// interpreting them is the verifier's job.
type DirectoryResponse interface{}

// A DistinguishedResponse carries the directory's distinguished tree
// head and its signature. A directory returns this DirectoryResponse
// type upon a DistinguishedRequest.
type DistinguishedResponse struct {
	TreeHead  []byte
	Signature []byte
}

// A SearchResponse carries the account state proved for a
// SearchRequest, anchored at the signed tree head it was verified
// against. A directory returns this DirectoryResponse type upon a
// SearchRequest.
type SearchResponse struct {
	TreeHead     []byte
	Signature    []byte
	AccountState []byte
}

// A MonitorResponse carries the extended account state proved for a
// MonitorRequest, anchored at the signed tree head it was verified
// against. A directory returns this DirectoryResponse type upon a
// MonitorRequest it could serve; otherwise it returns a bare
// ReqChangeDetected response.
type MonitorResponse struct {
	TreeHead     []byte
	Signature    []byte
	AccountState []byte
}

// NewErrorResponse creates a new response message indicating the error
// that occurred while a transparency directory was processing a client
// request.
func NewErrorResponse(e ErrorCode) *Response {
	return &Response{Error: e}
}

// NewDistinguishedResponse creates the response message a directory
// sends upon a DistinguishedRequest, with the signed distinguished
// tree head.
func NewDistinguishedResponse(treeHead, sig []byte) (*Response, ErrorCode) {
	return &Response{
		Error: ReqSuccess,
		DirectoryResponse: &DistinguishedResponse{
			TreeHead:  treeHead,
			Signature: sig,
		},
	}, ReqSuccess
}

// NewSearchResponse creates the response message a directory sends
// upon a SearchRequest, with the account state anchored at the signed
// tree head.
func NewSearchResponse(treeHead, sig, accountState []byte) (*Response, ErrorCode) {
	return &Response{
		Error: ReqSuccess,
		DirectoryResponse: &SearchResponse{
			TreeHead:     treeHead,
			Signature:    sig,
			AccountState: accountState,
		},
	}, ReqSuccess
}

// NewMonitorResponse creates the response message a directory sends
// upon a MonitorRequest it could extend consistently.
func NewMonitorResponse(treeHead, sig, accountState []byte) (*Response, ErrorCode) {
	return &Response{
		Error: ReqSuccess,
		DirectoryResponse: &MonitorResponse{
			TreeHead:     treeHead,
			Signature:    sig,
			AccountState: accountState,
		},
	}, ReqSuccess
}

// NewChangeDetectedResponse creates the payload-less response a
// directory sends upon a MonitorRequest whose account history it
// cannot extend. The client reacts with a full search.
func NewChangeDetectedResponse() (*Response, ErrorCode) {
	return &Response{Error: ReqChangeDetected}, ReqChangeDetected
}

// Validate returns the response's error code if the code indicates a
// failure, and checks that the payload is well formed for the code
// otherwise.
func (msg *Response) Validate() error {
	if Errors[msg.Error] {
		return msg.Error
	}
	switch dr := msg.DirectoryResponse.(type) {
	case *DistinguishedResponse:
		if msg.Error != ReqSuccess ||
			len(dr.TreeHead) == 0 || len(dr.Signature) == 0 {
			return ErrMalformedMessage
		}
		return nil
	case *SearchResponse:
		if msg.Error != ReqSuccess || len(dr.TreeHead) == 0 ||
			len(dr.Signature) == 0 || len(dr.AccountState) == 0 {
			return ErrMalformedMessage
		}
		return nil
	case *MonitorResponse:
		if msg.Error != ReqSuccess || len(dr.TreeHead) == 0 ||
			len(dr.Signature) == 0 || len(dr.AccountState) == 0 {
			return ErrMalformedMessage
		}
		return nil
	case nil:
		if ErrorResponses[msg.Error] {
			return nil
		}
		return ErrMalformedMessage
	default:
		return ErrMalformedMessage
	}
}
