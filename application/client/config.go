package client

import (
	"github.com/keytrans-sys/keytrans-go/application"
	"github.com/keytrans-sys/keytrans-go/crypto"
)

// Backends supported for the client's local record store.
const (
	LevelDBBackend = "leveldb"
	BadgerBackend  = "badger"
)

// defaultRequestTimeout bounds one request-response round trip,
// in seconds.
const defaultRequestTimeout = 5

// Config contains the client's configuration needed to send a request
// to a key transparency directory: the path to the directory's signing
// public-key file and the actual public-key parsed from that file; the
// directory's address; and the location and backend of the client's
// local record store.
//
// Note that if TLSCertPath is empty, the client accepts whatever
// certificate the directory presents. Point it at the directory's PEM
// certificate to pin it.
type Config struct {
	*application.CommonConfig

	SignPubkeyPath string `toml:"sign_pubkey_path"`

	VerifKey crypto.VerifKey

	// Address is formatted as a url: scheme://address, where scheme
	// is either "tcp" or "unix".
	Address     string `toml:"address"`
	TLSCertPath string `toml:"cert,omitempty"`

	StorePath    string `toml:"store_path"`
	StoreBackend string `toml:"store_backend,omitempty"`

	// RequestTimeout bounds one round trip, in seconds.
	RequestTimeout int `toml:"request_timeout,omitempty"`
}

var _ application.AppConfig = (*Config)(nil)

// NewConfig initializes a new client configuration at the
// given file path, with the given config encoding,
// directory signing public key path, directory address, and
// record store path.
func NewConfig(file, encoding string, signPubkeyPath, dirAddr,
	storePath string) *Config {
	var conf = Config{
		CommonConfig:   application.NewCommonConfig(file, encoding, nil),
		SignPubkeyPath: signPubkeyPath,
		Address:        dirAddr,
		StorePath:      storePath,
		StoreBackend:   LevelDBBackend,
		RequestTimeout: defaultRequestTimeout,
	}

	return &conf
}

// Load initializes a client's configuration from the given file
// using the given encoding.
// It reads the signing public-key file and parses the actual key.
func (conf *Config) Load(file, encoding string) error {
	conf.CommonConfig = application.NewCommonConfig(file, encoding, nil)
	if err := conf.GetLoader().Decode(conf); err != nil {
		return err
	}

	// load verification key
	verifKey, err := application.LoadVerifKey(conf.SignPubkeyPath, file)
	if err != nil {
		return err
	}
	conf.VerifKey = verifKey

	if conf.StoreBackend == "" {
		conf.StoreBackend = LevelDBBackend
	}
	if conf.RequestTimeout <= 0 {
		conf.RequestTimeout = defaultRequestTimeout
	}
	return nil
}

// Save writes a client's configuration.
func (conf *Config) Save() error {
	return conf.GetLoader().Encode(conf)
}

// GetPath returns the client's configuration file path.
func (conf *Config) GetPath() string {
	return conf.Path
}
