package client

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/keytrans-sys/keytrans-go/protocol"
)

// A Request names the account a caller wants searched or monitored
// and the identifiers to include in the lookup.
//
// ACI and IdentityKey are mandatory. E164 and UsernameHash are
// optional: a nil pointer or a nil slice means the identifier is not
// part of the request. An empty non-nil value is sent as is; it never
// means absent.
type Request struct {
	ACI          protocol.ACI
	IdentityKey  []byte
	E164         *protocol.E164Info
	UsernameHash []byte
}

// Validate reports whether the request may be sent at all.
func (req *Request) Validate() error {
	if req.ACI == uuid.Nil {
		return fmt.Errorf("%w: missing ACI", protocol.ErrMalformedClientRequest)
	}
	if len(req.IdentityKey) != protocol.IdentityKeySizeByte {
		return fmt.Errorf("%w: identity key must be %d bytes (got %d)",
			protocol.ErrMalformedClientRequest,
			protocol.IdentityKeySizeByte, len(req.IdentityKey))
	}
	if req.E164 != nil {
		if req.E164.E164 == "" {
			return fmt.Errorf("%w: empty E.164 number",
				protocol.ErrMalformedClientRequest)
		}
		if len(req.E164.UnidentifiedAccessKey) != protocol.AccessKeySizeByte {
			return fmt.Errorf("%w: access key must be %d bytes (got %d)",
				protocol.ErrMalformedClientRequest,
				protocol.AccessKeySizeByte, len(req.E164.UnidentifiedAccessKey))
		}
	}
	if req.UsernameHash != nil && len(req.UsernameHash) != protocol.UsernameHashSizeByte {
		return fmt.Errorf("%w: username hash must be %d bytes (got %d)",
			protocol.ErrMalformedClientRequest,
			protocol.UsernameHashSizeByte, len(req.UsernameHash))
	}
	return nil
}

// NewSearchRequest assembles the wire search request from req and the
// record snapshot read from the store: prior is the account state of
// the previous verified search, nil on first contact, and head is the
// distinguished tree head anchoring verification. The construction is
// pure; it performs no I/O and consults no clock.
func NewSearchRequest(req *Request, prior, head []byte) (*protocol.SearchRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(head) == 0 {
		return nil, fmt.Errorf("%w: missing distinguished tree head",
			protocol.ErrMalformedClientRequest)
	}
	return &protocol.SearchRequest{
		ACI:               req.ACI,
		IdentityKey:       req.IdentityKey,
		E164:              req.E164,
		UsernameHash:      req.UsernameHash,
		Prior:             prior,
		DistinguishedHead: head,
	}, nil
}

// NewMonitorRequest assembles the wire monitor request from req and
// the record snapshot, mirroring NewSearchRequest. prior may be nil
// when the caller never searched the account; the directory rejects
// such requests, not this constructor.
func NewMonitorRequest(req *Request, prior, head []byte) (*protocol.MonitorRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(head) == 0 {
		return nil, fmt.Errorf("%w: missing distinguished tree head",
			protocol.ErrMalformedClientRequest)
	}
	return &protocol.MonitorRequest{
		ACI:               req.ACI,
		IdentityKey:       req.IdentityKey,
		E164:              req.E164,
		UsernameHash:      req.UsernameHash,
		Prior:             prior,
		DistinguishedHead: head,
	}, nil
}
