package client

import (
	"encoding/json"
	"fmt"

	"github.com/keytrans-sys/keytrans-go/crypto"
	"github.com/keytrans-sys/keytrans-go/protocol"
)

// A Verifier checks a directory's response to one request and
// condenses it into the opaque verified bytes that get persisted in
// the client's record store. The protocol layer above never looks
// inside these bytes; the directory decodes them again when they come
// back inside a later request.
//
// VerifyMonitor additionally reports whether the directory signaled
// that the account's history cannot be extended, in which case there
// are no verified bytes.
type Verifier interface {
	VerifyDistinguished(resp *protocol.Response) ([]byte, error)
	VerifySearch(req *protocol.SearchRequest, resp *protocol.Response) ([]byte, error)
	VerifyMonitor(req *protocol.MonitorRequest, resp *protocol.Response) ([]byte, bool, error)
}

// HeadVerifier verifies that responses are authentically signed with
// the directory's pinned signing key. It does not re-derive inclusion
// or consistency proofs; an auditor-grade verifier can implement
// Verifier to check more than signatures.
type HeadVerifier struct {
	verifKey crypto.VerifKey
}

var _ Verifier = (*HeadVerifier)(nil)

// NewHeadVerifier constructs a verifier pinned to the given directory
// signing key.
func NewHeadVerifier(verifKey crypto.VerifKey) *HeadVerifier {
	return &HeadVerifier{verifKey: verifKey}
}

// VerifyDistinguished checks the signature on a distinguished tree
// head and returns the serialized signed head for the record store.
func (hv *HeadVerifier) VerifyDistinguished(resp *protocol.Response) ([]byte, error) {
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	dr, ok := resp.DirectoryResponse.(*protocol.DistinguishedResponse)
	if !ok {
		return nil, protocol.ErrMalformedMessage
	}
	if !hv.verifKey.Verify(crypto.Digest(dr.TreeHead), dr.Signature) {
		return nil, fmt.Errorf("%w: invalid signature on the distinguished tree head",
			protocol.ErrVerification)
	}
	return json.Marshal(dr)
}

// VerifySearch checks the signature binding the account state to the
// tree head and returns the serialized signed state for the record
// store.
func (hv *HeadVerifier) VerifySearch(req *protocol.SearchRequest, resp *protocol.Response) ([]byte, error) {
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	sr, ok := resp.DirectoryResponse.(*protocol.SearchResponse)
	if !ok {
		return nil, protocol.ErrMalformedMessage
	}
	if !hv.verifKey.Verify(crypto.Digest(sr.TreeHead, sr.AccountState), sr.Signature) {
		return nil, fmt.Errorf("%w: invalid signature on the account state",
			protocol.ErrVerification)
	}
	return json.Marshal(sr)
}

// VerifyMonitor checks the signature on the extended account state, or
// reports that the directory detected a change that needs a full
// search.
func (hv *HeadVerifier) VerifyMonitor(req *protocol.MonitorRequest, resp *protocol.Response) ([]byte, bool, error) {
	if err := resp.Validate(); err != nil {
		return nil, false, err
	}
	if resp.Error == protocol.ReqChangeDetected {
		return nil, true, nil
	}
	mr, ok := resp.DirectoryResponse.(*protocol.MonitorResponse)
	if !ok {
		return nil, false, protocol.ErrMalformedMessage
	}
	if !hv.verifKey.Verify(crypto.Digest(mr.TreeHead, mr.AccountState), mr.Signature) {
		return nil, false, fmt.Errorf("%w: invalid signature on the extended account state",
			protocol.ErrVerification)
	}
	blob, err := json.Marshal(mr)
	return blob, false, err
}
