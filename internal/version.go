// Package internal holds build metadata shared by the keytrans
// command-line tools.
package internal

// Version is the current release of the keytrans tools.
const Version = "0.1.0"
