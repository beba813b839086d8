// Defines the constants representing the outcomes of a client request
// and the types of errors that a transparency directory, the transport,
// or the client's own store may produce during a request.

package protocol

// An ErrorCode implements the built-in error interface type.
type ErrorCode int

// Request outcomes.
const (
	// ReqSuccess indicates that the request completed and the
	// response passed verification.
	ReqSuccess ErrorCode = iota + 100
	// ReqChangeDetected indicates that the directory could not extend
	// the monitored account's history and the client must perform a
	// full search instead.
	ReqChangeDetected
)

// Failures. Each code is a sentinel: causes are attached by wrapping
// (fmt.Errorf("%w: ...", code)) so callers can classify errors with
// errors.Is.
const (
	// ErrMalformedClientRequest means the caller supplied a request
	// the client refuses to send (missing account id, bad key size).
	ErrMalformedClientRequest ErrorCode = iota + 200
	// ErrMalformedMessage means the directory responded in a way that
	// violates the protocol: an unparseable message, an unexpected
	// response type, or a semantically invalid payload.
	ErrMalformedMessage
	// ErrVerification means a cryptographic check on the response
	// failed. The response must be discarded.
	ErrVerification
	// ErrTransportInactive means the directory could not be reached.
	ErrTransportInactive
	// ErrIO means the round trip failed after the connection was
	// established.
	ErrIO
	// ErrCancelled means the caller aborted the request.
	ErrCancelled
	// ErrStore means the client's persistent store failed.
	ErrStore
)

// Errors contains the codes indicating the request failed and no
// record may be updated from its response.
var Errors = map[ErrorCode]bool{
	ErrMalformedClientRequest: true,
	ErrMalformedMessage:       true,
	ErrVerification:           true,
	ErrTransportInactive:      true,
	ErrIO:                     true,
	ErrCancelled:              true,
	ErrStore:                  true,
}

// ErrorResponses contains the codes whose Response legitimately omits
// the DirectoryResponse payload.
var ErrorResponses = map[ErrorCode]bool{
	ReqChangeDetected:         true,
	ErrMalformedClientRequest: true,
	ErrMalformedMessage:       true,
	ErrVerification:           true,
	ErrTransportInactive:      true,
	ErrIO:                     true,
	ErrCancelled:              true,
	ErrStore:                  true,
}

var errorMessages = map[ErrorCode]string{
	ReqSuccess:                "[keytrans] Successful request",
	ReqChangeDetected:         "[keytrans] Directory requires a full search for this account",
	ErrMalformedClientRequest: "[keytrans] Malformed client request",
	ErrMalformedMessage:       "[keytrans] Malformed directory message",
	ErrVerification:           "[keytrans] Response verification failed",
	ErrTransportInactive:      "[keytrans] Directory transport inactive",
	ErrIO:                     "[keytrans] Directory round trip failed",
	ErrCancelled:              "[keytrans] Request cancelled",
	ErrStore:                  "[keytrans] Client store failure",
}

func (e ErrorCode) Error() string {
	if errorMessages[e] == "" {
		panic("[keytrans] Unknown error code")
	}
	return errorMessages[e]
}
