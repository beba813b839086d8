// Implements the client-side orchestration of the key transparency
// protocols: which stored records feed each directory request, and
// which verified responses replace them.

package client

import (
	"context"
	"fmt"

	"github.com/keytrans-sys/keytrans-go/protocol"
)

// Store is the client's durable record store. It holds exactly two
// record kinds: the distinguished tree head shared by all requests,
// and one opaque verified state blob per account. Reads report
// absence through the found return; absence is never an error.
//
// Implementations must persist each write before returning, and must
// never hand out values a later write can mutate.
type Store interface {
	// LastDistinguishedTreeHead returns the verified distinguished
	// tree head persisted by an earlier call, if any.
	LastDistinguishedTreeHead() (head []byte, found bool, err error)
	// SetLastDistinguishedTreeHead replaces the stored distinguished
	// tree head. A nil head clears the record; the next operation
	// then bootstraps a fresh head from the directory.
	SetLastDistinguishedTreeHead(head []byte) error
	// AccountData returns the opaque verified state persisted for
	// aci by an earlier search or monitor, if any.
	AccountData(aci protocol.ACI) (state []byte, found bool, err error)
	// SetAccountData replaces the state stored for aci.
	SetAccountData(aci protocol.ACI, state []byte) error
}

// Directory performs one fully verified round trip per call against a
// transparency directory: it sends the request, reads the response,
// runs every cryptographic check, and returns only opaque verified
// bytes. A KeyTransparency never looks inside them.
//
// Implementations classify every error into the protocol error codes,
// wrapping the code so that errors.Is recognizes it. In particular, a
// context cancellation must surface as protocol.ErrCancelled and must
// abort the round trip without returning partial data.
type Directory interface {
	// Distinguished fetches the directory's current distinguished
	// tree head. last is the head this client verified before, nil
	// when it has none; the directory proves consistency from last
	// to the returned head.
	Distinguished(ctx context.Context, last []byte) ([]byte, error)
	// Search runs one verified search round trip and returns the
	// verified account state.
	Search(ctx context.Context, req *protocol.SearchRequest) ([]byte, error)
	// Monitor runs one verified monitor round trip. changed reports
	// that the directory cannot extend the account's history and the
	// client must run a full search; when changed is true, state is
	// nil and err is nil.
	Monitor(ctx context.Context, req *protocol.MonitorRequest) (state []byte, changed bool, err error)
}

// KeyTransparency orchestrates the key transparency protocols for one
// client. It owns when the directory is called, which stored records
// feed each request, and which verified results are written back; the
// cryptography itself lives behind the Directory.
//
// A KeyTransparency performs no locking. Within a call, the store
// read, the directory round trip and the store write run strictly in
// order; concurrent calls touching the same store must be serialized
// by the caller.
type KeyTransparency struct {
	directory Directory
}

// New creates a KeyTransparency talking to the given directory.
func New(directory Directory) *KeyTransparency {
	return &KeyTransparency{directory: directory}
}

// Search performs a verified search for the account named in req and
// persists the verified result in store. The first search on an empty
// store first fetches and persists the directory's distinguished tree
// head; later calls reuse the stored head as their verification
// anchor without asking the directory again.
//
// A failed search leaves the account's record untouched: a record is
// only ever replaced by a response that was verified against the
// snapshot read at the start of this same call.
func (kt *KeyTransparency) Search(ctx context.Context, req *Request, store Store) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	prior, _, err := store.AccountData(req.ACI)
	if err != nil {
		return nil, storeError(err)
	}
	head, err := kt.distinguishedTreeHead(ctx, store)
	if err != nil {
		return nil, err
	}
	return kt.search(ctx, req, store, prior, head)
}

// Monitor verifies that the directory extended the account's history
// consistently since the last verified search or monitor, and
// persists the extended state. When the directory signals that the
// history cannot be extended, Monitor transparently falls back to one
// full search round trip, reusing the records read at the start of
// the call, and persists the search result instead.
//
// Monitoring an account this store has never searched violates the
// caller contract. The request is sent anyway and the directory's
// rejection comes back unchanged; nothing is special-cased here.
func (kt *KeyTransparency) Monitor(ctx context.Context, req *Request, store Store) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	prior, _, err := store.AccountData(req.ACI)
	if err != nil {
		return nil, storeError(err)
	}
	head, err := kt.distinguishedTreeHead(ctx, store)
	if err != nil {
		return nil, err
	}

	mreq, err := NewMonitorRequest(req, prior, head)
	if err != nil {
		return nil, err
	}
	state, changed, err := kt.directory.Monitor(ctx, mreq)
	if err != nil {
		return nil, err
	}
	if changed {
		return kt.search(ctx, req, store, prior, head)
	}

	if err := store.SetAccountData(req.ACI, state); err != nil {
		return nil, storeError(err)
	}
	return state, nil
}

// RefreshDistinguished forces one distinguished round trip even when
// a head is already stored, proving consistency from the stored head,
// and persists the newer verified head. A failed refresh leaves the
// stored head exactly as it was.
func (kt *KeyTransparency) RefreshDistinguished(ctx context.Context, store Store) ([]byte, error) {
	last, _, err := store.LastDistinguishedTreeHead()
	if err != nil {
		return nil, storeError(err)
	}
	head, err := kt.directory.Distinguished(ctx, last)
	if err != nil {
		return nil, err
	}
	if err := store.SetLastDistinguishedTreeHead(head); err != nil {
		return nil, storeError(err)
	}
	return head, nil
}

// search runs the one search round trip against the snapshot read at
// the start of the calling operation and persists the verified state.
func (kt *KeyTransparency) search(ctx context.Context, req *Request, store Store, prior, head []byte) ([]byte, error) {
	sreq, err := NewSearchRequest(req, prior, head)
	if err != nil {
		return nil, err
	}
	state, err := kt.directory.Search(ctx, sreq)
	if err != nil {
		return nil, err
	}
	if err := store.SetAccountData(req.ACI, state); err != nil {
		return nil, storeError(err)
	}
	return state, nil
}

// distinguishedTreeHead returns the stored distinguished head, or
// fetches, persists and returns it when the store has none. The head
// never expires: once stored it is reused until a caller explicitly
// refreshes it, and at most one fetch is attempted per operation.
func (kt *KeyTransparency) distinguishedTreeHead(ctx context.Context, store Store) ([]byte, error) {
	head, found, err := store.LastDistinguishedTreeHead()
	if err != nil {
		return nil, storeError(err)
	}
	if found {
		return head, nil
	}
	head, err = kt.directory.Distinguished(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := store.SetLastDistinguishedTreeHead(head); err != nil {
		return nil, storeError(err)
	}
	return head, nil
}

func storeError(err error) error {
	return fmt.Errorf("%w: %v", protocol.ErrStore, err)
}
