package clientkv

const (
	// DistinguishedIdentifier is the domain separation for the
	// distinguished tree head record.
	DistinguishedIdentifier = 'D'
	// AccountIdentifier is the domain separation for per-account
	// state records.
	AccountIdentifier = 'A'
)
