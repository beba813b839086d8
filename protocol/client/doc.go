/*
Package client orchestrates the client side of the key transparency
protocols.

Introduction

A transparency directory publishes a signed, append-only view of every
account's identity data. Clients never trust a response by itself:
each one is verified against the distinguished tree head the client
saw before, and the verified result is persisted so the next request
can build on it. client implements that orchestration. The
cryptographic checks themselves live behind the Directory collaborator
and the durable records behind the Store collaborator; this package
decides what to read, when to go to the network, and what to write
back. This document outlines each protocol from the client's
perspective.

Distinguished tree head

- The first operation on an empty store fetches the directory's
distinguished tree head and persists it. Every later operation reuses
the stored head as its verification anchor without asking the
directory again; the head never expires on its own.

- A caller can explicitly refresh the head. The directory then proves
consistency from the stored head to the newer one, and only the newer
verified head replaces it. A failed refresh changes nothing.

Search

- The client reads the account's previous verified state (absent on
first contact) and the distinguished head.

- It sends a search request
        search_req = (aci, identity_key, e164?, username_hash?, prior?, head)
and the directory answers with the account's current state and the
proofs tying it to head.

- The Directory verifies the proofs; the verified state replaces the
account's record. On any failure the record keeps its old bytes.

Monitor

- The client reads the same records and sends a monitor request with
the previous verified state. A directory that can extend the
account's history consistently returns the extended state, which
replaces the record.

- A directory that cannot extend the history answers "change
detected". The client then transparently runs one full search round
trip, reusing the records it already read, and persists the search
result. This fallback is part of the protocol, not error handling: no
other condition is retried.

- Monitoring an account that was never searched breaks the caller
contract; the directory rejects it and the rejection is returned as
is.
*/
package client
