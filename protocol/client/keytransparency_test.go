package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/keytrans-sys/keytrans-go/protocol"
)

// fakeStore keeps records in memory and can be told to fail either
// record kind's write, so tests can check that nothing is mutated.
type fakeStore struct {
	head     []byte
	hasHead  bool
	accounts map[protocol.ACI][]byte

	failReads       bool
	failHeadWrite   bool
	failStateWrites bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[protocol.ACI][]byte)}
}

var errStoreBroken = errors.New("store broken")

func (s *fakeStore) LastDistinguishedTreeHead() ([]byte, bool, error) {
	if s.failReads {
		return nil, false, errStoreBroken
	}
	return s.head, s.hasHead, nil
}

func (s *fakeStore) SetLastDistinguishedTreeHead(head []byte) error {
	if s.failHeadWrite {
		return errStoreBroken
	}
	s.head = head
	s.hasHead = true
	return nil
}

func (s *fakeStore) AccountData(aci protocol.ACI) ([]byte, bool, error) {
	if s.failReads {
		return nil, false, errStoreBroken
	}
	state, found := s.accounts[aci]
	return state, found, nil
}

func (s *fakeStore) SetAccountData(aci protocol.ACI, state []byte) error {
	if s.failStateWrites {
		return errStoreBroken
	}
	s.accounts[aci] = state
	return nil
}

// snapshot copies every record so tests can assert byte-identity
// after a failed operation.
func (s *fakeStore) snapshot() (head []byte, accounts map[protocol.ACI][]byte) {
	head = append([]byte(nil), s.head...)
	accounts = make(map[protocol.ACI][]byte, len(s.accounts))
	for aci, state := range s.accounts {
		accounts[aci] = append([]byte(nil), state...)
	}
	return head, accounts
}

func (s *fakeStore) equalsSnapshot(head []byte, accounts map[protocol.ACI][]byte) bool {
	if !bytes.Equal(s.head, head) || len(s.accounts) != len(accounts) {
		return false
	}
	for aci, state := range accounts {
		if !bytes.Equal(s.accounts[aci], state) {
			return false
		}
	}
	return true
}

// fakeDirectory scripts one verified round trip per method and
// records what was asked of it.
type fakeDirectory struct {
	head         []byte
	searchState  []byte
	monitorState []byte
	changed      bool

	distinguishedErr error
	searchErr        error
	monitorErr       error

	// blockUntilCancel makes every round trip wait for the caller
	// to abort, as a slow network would.
	blockUntilCancel bool

	distinguishedCalls int
	searchCalls        int
	monitorCalls       int

	lastDistinguishedPrior []byte
	lastSearch             *protocol.SearchRequest
	lastMonitor            *protocol.MonitorRequest
}

func (d *fakeDirectory) await(ctx context.Context) error {
	if !d.blockUntilCancel {
		return nil
	}
	<-ctx.Done()
	return fmt.Errorf("%w: %v", protocol.ErrCancelled, ctx.Err())
}

func (d *fakeDirectory) Distinguished(ctx context.Context, last []byte) ([]byte, error) {
	d.distinguishedCalls++
	d.lastDistinguishedPrior = last
	if err := d.await(ctx); err != nil {
		return nil, err
	}
	if d.distinguishedErr != nil {
		return nil, d.distinguishedErr
	}
	return d.head, nil
}

func (d *fakeDirectory) Search(ctx context.Context, req *protocol.SearchRequest) ([]byte, error) {
	d.searchCalls++
	d.lastSearch = req
	if err := d.await(ctx); err != nil {
		return nil, err
	}
	if d.searchErr != nil {
		return nil, d.searchErr
	}
	return d.searchState, nil
}

func (d *fakeDirectory) Monitor(ctx context.Context, req *protocol.MonitorRequest) ([]byte, bool, error) {
	d.monitorCalls++
	d.lastMonitor = req
	if err := d.await(ctx); err != nil {
		return nil, false, err
	}
	if d.monitorErr != nil {
		return nil, false, d.monitorErr
	}
	if d.changed {
		return nil, true, nil
	}
	return d.monitorState, false, nil
}

func testRequest(aci protocol.ACI) *Request {
	key := make([]byte, protocol.IdentityKeySizeByte)
	key[0] = 0x05
	copy(key[1:], aci[:])
	return &Request{ACI: aci, IdentityKey: key}
}

func TestSearchBootstrapsEmptyStore(t *testing.T) {
	alice := uuid.New()
	d := &fakeDirectory{head: []byte("H0"), searchState: []byte("S0")}
	store := newFakeStore()
	kt := New(d)

	state, err := kt.Search(context.Background(), testRequest(alice), store)
	if err != nil {
		t.Fatal("Unexpected search failure:", err)
	}
	if !bytes.Equal(state, []byte("S0")) {
		t.Error("Expect S0 got", state)
	}
	if !bytes.Equal(store.head, []byte("H0")) || !store.hasHead {
		t.Error("Expect distinguished head H0 persisted, got", store.head)
	}
	if !bytes.Equal(store.accounts[alice], []byte("S0")) {
		t.Error("Expect account state S0 persisted, got", store.accounts[alice])
	}
	if d.lastDistinguishedPrior != nil {
		t.Error("Expect bootstrap fetch without prior head, got", d.lastDistinguishedPrior)
	}
	if d.lastSearch.Prior != nil {
		t.Error("Expect first search without prior state, got", d.lastSearch.Prior)
	}
	if !bytes.Equal(d.lastSearch.DistinguishedHead, []byte("H0")) {
		t.Error("Expect search anchored at H0, got", d.lastSearch.DistinguishedHead)
	}
}

func TestDistinguishedHeadFetchedOnce(t *testing.T) {
	d := &fakeDirectory{head: []byte("H0"), searchState: []byte("S0")}
	store := newFakeStore()
	kt := New(d)

	if _, err := kt.Search(context.Background(), testRequest(uuid.New()), store); err != nil {
		t.Fatal(err)
	}
	if _, err := kt.Search(context.Background(), testRequest(uuid.New()), store); err != nil {
		t.Fatal(err)
	}
	if d.distinguishedCalls != 1 {
		t.Error("Expect 1 distinguished round trip, got", d.distinguishedCalls)
	}
}

func TestFailuresLeaveRecordsUntouched(t *testing.T) {
	alice := uuid.New()

	tests := []struct {
		name  string
		setup func(*fakeDirectory, *fakeStore)
		run   func(*KeyTransparency, *Request, Store) error
		want  protocol.ErrorCode
	}{
		{"search transport failure",
			func(d *fakeDirectory, s *fakeStore) {
				d.searchErr = fmt.Errorf("%w: connection refused", protocol.ErrTransportInactive)
			},
			searchOp, protocol.ErrTransportInactive},
		{"search verification failure",
			func(d *fakeDirectory, s *fakeStore) {
				d.searchErr = fmt.Errorf("%w: bad proof", protocol.ErrVerification)
			},
			searchOp, protocol.ErrVerification},
		{"search protocol violation",
			func(d *fakeDirectory, s *fakeStore) {
				d.searchErr = fmt.Errorf("%w: bogus payload", protocol.ErrMalformedMessage)
			},
			searchOp, protocol.ErrMalformedMessage},
		{"search io failure",
			func(d *fakeDirectory, s *fakeStore) {
				d.searchErr = fmt.Errorf("%w: connection reset", protocol.ErrIO)
			},
			searchOp, protocol.ErrIO},
		{"search store write failure",
			func(d *fakeDirectory, s *fakeStore) { s.failStateWrites = true },
			searchOp, protocol.ErrStore},
		{"search store read failure",
			func(d *fakeDirectory, s *fakeStore) { s.failReads = true },
			searchOp, protocol.ErrStore},
		{"monitor transport failure",
			func(d *fakeDirectory, s *fakeStore) {
				d.monitorErr = fmt.Errorf("%w: connection refused", protocol.ErrTransportInactive)
			},
			monitorOp, protocol.ErrTransportInactive},
		{"monitor verification failure",
			func(d *fakeDirectory, s *fakeStore) {
				d.monitorErr = fmt.Errorf("%w: bad proof", protocol.ErrVerification)
			},
			monitorOp, protocol.ErrVerification},
		{"monitor store write failure",
			func(d *fakeDirectory, s *fakeStore) { s.failStateWrites = true },
			monitorOp, protocol.ErrStore},
	}

	for _, tt := range tests {
		d := &fakeDirectory{
			head:         []byte("H0"),
			searchState:  []byte("S-new"),
			monitorState: []byte("S-new"),
		}
		store := newFakeStore()
		store.head = []byte("H0")
		store.hasHead = true
		store.accounts[alice] = []byte("S0")
		headBefore, accountsBefore := store.snapshot()
		tt.setup(d, store)

		err := tt.run(New(d), testRequest(alice), store)
		if !errors.Is(err, tt.want) {
			t.Errorf("Test %s failed: got %v, want %v", tt.name, err, tt.want)
		}
		if !store.equalsSnapshot(headBefore, accountsBefore) {
			t.Errorf("Test %s failed: records changed after a failed call", tt.name)
		}
	}
}

func searchOp(kt *KeyTransparency, req *Request, store Store) error {
	_, err := kt.Search(context.Background(), req, store)
	return err
}

func monitorOp(kt *KeyTransparency, req *Request, store Store) error {
	_, err := kt.Monitor(context.Background(), req, store)
	return err
}

func TestSearchUpdatesOnlyTouchedAccount(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	d := &fakeDirectory{searchState: []byte("S1")}
	store := newFakeStore()
	store.head = []byte("H0")
	store.hasHead = true
	store.accounts[alice] = []byte("S0")
	store.accounts[bob] = []byte("B0")
	kt := New(d)

	state, err := kt.Search(context.Background(), testRequest(alice), store)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(state, []byte("S1")) {
		t.Error("Expect S1 got", state)
	}
	if !bytes.Equal(store.accounts[alice], []byte("S1")) {
		t.Error("Expect alice updated to S1, got", store.accounts[alice])
	}
	if !bytes.Equal(store.accounts[bob], []byte("B0")) {
		t.Error("Expect bob untouched, got", store.accounts[bob])
	}
	if !bytes.Equal(store.head, []byte("H0")) {
		t.Error("Expect head untouched, got", store.head)
	}
	if d.distinguishedCalls != 0 {
		t.Error("Expect no distinguished refetch, got", d.distinguishedCalls)
	}
	if !bytes.Equal(d.lastSearch.Prior, []byte("S0")) {
		t.Error("Expect prior state S0 in the request, got", d.lastSearch.Prior)
	}
}

func TestMonitorPersistsExtendedState(t *testing.T) {
	alice := uuid.New()
	d := &fakeDirectory{monitorState: []byte("S1")}
	store := newFakeStore()
	store.head = []byte("H0")
	store.hasHead = true
	store.accounts[alice] = []byte("S0")
	kt := New(d)

	state, err := kt.Monitor(context.Background(), testRequest(alice), store)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(state, []byte("S1")) {
		t.Error("Expect S1 got", state)
	}
	if !bytes.Equal(store.accounts[alice], []byte("S1")) {
		t.Error("Expect stored state S1, got", store.accounts[alice])
	}
	if d.searchCalls != 0 {
		t.Error("Expect no search fallback, got", d.searchCalls, "round trips")
	}
	if !bytes.Equal(d.lastMonitor.Prior, []byte("S0")) {
		t.Error("Expect prior state S0 in the request, got", d.lastMonitor.Prior)
	}
}

func TestMonitorFallsBackToSearch(t *testing.T) {
	alice := uuid.New()
	d := &fakeDirectory{changed: true, searchState: []byte("S-search")}
	store := newFakeStore()
	store.head = []byte("H0")
	store.hasHead = true
	store.accounts[alice] = []byte("S0")
	kt := New(d)

	state, err := kt.Monitor(context.Background(), testRequest(alice), store)
	if err != nil {
		t.Fatal("Expect the fallback search to succeed, got", err)
	}
	if !bytes.Equal(state, []byte("S-search")) {
		t.Error("Expect the search result S-search, got", state)
	}
	if !bytes.Equal(store.accounts[alice], []byte("S-search")) {
		t.Error("Expect the search result persisted, got", store.accounts[alice])
	}
	if d.monitorCalls != 1 || d.searchCalls != 1 {
		t.Error("Expect exactly one monitor and one search round trip, got",
			d.monitorCalls, "and", d.searchCalls)
	}
	if d.distinguishedCalls != 0 {
		t.Error("Expect the fallback to reuse the stored head, got",
			d.distinguishedCalls, "refetches")
	}
	// the fallback reuses the snapshot read at the start of the call
	if !bytes.Equal(d.lastSearch.Prior, []byte("S0")) {
		t.Error("Expect the fallback to reuse prior state S0, got", d.lastSearch.Prior)
	}
	if !bytes.Equal(d.lastSearch.DistinguishedHead, []byte("H0")) {
		t.Error("Expect the fallback anchored at H0, got", d.lastSearch.DistinguishedHead)
	}
}

func TestMonitorWithoutPriorSearchIsSentAndRejected(t *testing.T) {
	alice := uuid.New()
	d := &fakeDirectory{
		monitorErr: fmt.Errorf("%w: monitor without prior state", protocol.ErrMalformedMessage),
	}
	store := newFakeStore()
	store.head = []byte("H0")
	store.hasHead = true
	kt := New(d)

	_, err := kt.Monitor(context.Background(), testRequest(alice), store)
	if !errors.Is(err, protocol.ErrMalformedMessage) {
		t.Fatal("Expect the directory's rejection, got", err)
	}
	if d.monitorCalls != 1 {
		t.Error("Expect the request to be sent anyway, got", d.monitorCalls, "round trips")
	}
	if d.lastMonitor.Prior != nil {
		t.Error("Expect nil prior state in the request, got", d.lastMonitor.Prior)
	}
	if len(store.accounts) != 0 {
		t.Error("Expect no account record, got", store.accounts)
	}
}

func TestCancelledCallLeavesRecordsUntouched(t *testing.T) {
	alice := uuid.New()

	tests := []struct {
		name string
		warm bool
	}{
		{"empty store", false},
		{"warm store", true},
	}
	for _, tt := range tests {
		d := &fakeDirectory{head: []byte("H0"), searchState: []byte("S1"), blockUntilCancel: true}
		store := newFakeStore()
		if tt.warm {
			store.head = []byte("H0")
			store.hasHead = true
			store.accounts[alice] = []byte("S0")
		}
		headBefore, accountsBefore := store.snapshot()
		kt := New(d)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := kt.Search(ctx, testRequest(alice), store)
		if !errors.Is(err, protocol.ErrCancelled) {
			t.Errorf("Test %s failed: got %v, want %v", tt.name, err, protocol.ErrCancelled)
		}
		if !store.equalsSnapshot(headBefore, accountsBefore) {
			t.Errorf("Test %s failed: records changed after an aborted call", tt.name)
		}
	}
}

func TestRefreshDistinguishedReplacesHead(t *testing.T) {
	d := &fakeDirectory{head: []byte("H1")}
	store := newFakeStore()
	store.head = []byte("H0")
	store.hasHead = true
	kt := New(d)

	head, err := kt.RefreshDistinguished(context.Background(), store)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(head, []byte("H1")) || !bytes.Equal(store.head, []byte("H1")) {
		t.Error("Expect H1 persisted, got", store.head)
	}
	if !bytes.Equal(d.lastDistinguishedPrior, []byte("H0")) {
		t.Error("Expect consistency proven from H0, got", d.lastDistinguishedPrior)
	}
}

func TestRefreshDistinguishedFailureKeepsOldHead(t *testing.T) {
	d := &fakeDirectory{
		distinguishedErr: fmt.Errorf("%w: bad consistency proof", protocol.ErrVerification),
	}
	store := newFakeStore()
	store.head = []byte("H0")
	store.hasHead = true
	kt := New(d)

	_, err := kt.RefreshDistinguished(context.Background(), store)
	if !errors.Is(err, protocol.ErrVerification) {
		t.Fatal("Expect the verification failure, got", err)
	}
	if !bytes.Equal(store.head, []byte("H0")) {
		t.Error("Expect the old head H0 kept, got", store.head)
	}
}

func TestSearchThenMonitorEndToEnd(t *testing.T) {
	alice := uuid.New()
	d := &fakeDirectory{head: []byte("H0"), searchState: []byte("S0"), monitorState: []byte("S1")}
	store := newFakeStore()
	kt := New(d)

	if _, err := kt.Search(context.Background(), testRequest(alice), store); err != nil {
		t.Fatal(err)
	}
	state, err := kt.Monitor(context.Background(), testRequest(alice), store)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(state, []byte("S1")) {
		t.Error("Expect S1 got", state)
	}
	if !bytes.Equal(store.accounts[alice], []byte("S1")) {
		t.Error("Expect stored state S1, got", store.accounts[alice])
	}
	if !bytes.Equal(store.head, []byte("H0")) {
		t.Error("Expect head still H0, got", store.head)
	}
	if d.distinguishedCalls != 1 {
		t.Error("Expect 1 distinguished round trip in total, got", d.distinguishedCalls)
	}
}

func TestDistinguishedPersistFailureFailsSearch(t *testing.T) {
	d := &fakeDirectory{head: []byte("H0"), searchState: []byte("S0")}
	store := newFakeStore()
	store.failHeadWrite = true
	kt := New(d)

	_, err := kt.Search(context.Background(), testRequest(uuid.New()), store)
	if !errors.Is(err, protocol.ErrStore) {
		t.Fatal("Expect", protocol.ErrStore, "got", err)
	}
	if d.searchCalls != 0 {
		t.Error("Expect no search round trip after a failed head persist, got", d.searchCalls)
	}
	if len(store.accounts) != 0 {
		t.Error("Expect no account record, got", store.accounts)
	}
}

func TestRequestConstruction(t *testing.T) {
	aci := uuid.New()
	goodKey := make([]byte, protocol.IdentityKeySizeByte)
	accessKey := make([]byte, protocol.AccessKeySizeByte)
	hash := make([]byte, protocol.UsernameHashSizeByte)

	tests := []struct {
		name string
		req  *Request
		ok   bool
	}{
		{"mandatory fields only", &Request{ACI: aci, IdentityKey: goodKey}, true},
		{"all identifiers", &Request{
			ACI:          aci,
			IdentityKey:  goodKey,
			E164:         &protocol.E164Info{E164: "+14155550101", UnidentifiedAccessKey: accessKey},
			UsernameHash: hash,
		}, true},
		{"missing ACI", &Request{IdentityKey: goodKey}, false},
		{"short identity key", &Request{ACI: aci, IdentityKey: goodKey[:16]}, false},
		{"empty E.164 number", &Request{
			ACI:         aci,
			IdentityKey: goodKey,
			E164:        &protocol.E164Info{UnidentifiedAccessKey: accessKey},
		}, false},
		{"bad access key size", &Request{
			ACI:         aci,
			IdentityKey: goodKey,
			E164:        &protocol.E164Info{E164: "+14155550101", UnidentifiedAccessKey: accessKey[:8]},
		}, false},
		{"bad username hash size", &Request{
			ACI:          aci,
			IdentityKey:  goodKey,
			UsernameHash: hash[:16],
		}, false},
	}
	for _, tt := range tests {
		sreq, err := NewSearchRequest(tt.req, nil, []byte("H0"))
		if tt.ok && err != nil {
			t.Errorf("Test %s failed: got %v, want success", tt.name, err)
			continue
		}
		if !tt.ok {
			if !errors.Is(err, protocol.ErrMalformedClientRequest) {
				t.Errorf("Test %s failed: got %v, want %v",
					tt.name, err, protocol.ErrMalformedClientRequest)
			}
			continue
		}
		// construction is pure: the same inputs build the same request
		again, err := NewSearchRequest(tt.req, nil, []byte("H0"))
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(sreq, again) {
			t.Errorf("Test %s failed: two constructions differ", tt.name)
		}
	}

	if _, err := NewSearchRequest(&Request{ACI: aci, IdentityKey: goodKey}, nil, nil); !errors.Is(err, protocol.ErrMalformedClientRequest) {
		t.Error("Expect a missing head to be refused, got", err)
	}
	mreq, err := NewMonitorRequest(&Request{ACI: aci, IdentityKey: goodKey}, []byte("S0"), []byte("H0"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(mreq.Prior, []byte("S0")) || !bytes.Equal(mreq.DistinguishedHead, []byte("H0")) {
		t.Error("Monitor request doesn't carry the snapshot")
	}
}
