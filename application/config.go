package application

import (
	"fmt"
	"io/ioutil"

	"github.com/keytrans-sys/keytrans-go/crypto"
	"github.com/keytrans-sys/keytrans-go/utils"
)

// AppConfig provides an abstraction of the
// underlying encoding format for the configs.
type AppConfig interface {
	Load(file, encoding string) error
	Save() error
	GetPath() string
}

// CommonConfig is the generic type used to specify the configuration of
// any kind of key transparency application-level executable (e.g.
// client, test directory etc.). It contains some common configuration
// values including the file path, logger configuration, and config
// loader.
type CommonConfig struct {
	Path     string
	Logger   *LoggerConfig `toml:"logger"`
	Encoding string
	loader   ConfigLoader
}

// NewCommonConfig initializes an application's config file path,
// its loader for the given encoding, and the logger configuration.
// Note: This constructor must be called in each Load() method
// implementation of an AppConfig.
func NewCommonConfig(file, encoding string, logger *LoggerConfig) *CommonConfig {
	return &CommonConfig{
		Path:     file,
		Logger:   logger,
		Encoding: encoding,
		loader:   newConfigLoader(encoding),
	}
}

// GetLoader returns the config's loader.
func (conf *CommonConfig) GetLoader() ConfigLoader {
	return conf.loader
}

// LoadVerifKey loads the directory's public verification key at the
// given path specified in the given config file.
// If there is any parsing error or the key is malformed,
// LoadVerifKey() returns an error with a nil key.
func LoadVerifKey(path, file string) (crypto.VerifKey, error) {
	keyPath := utils.ResolvePath(path, file)
	verifKey, err := ioutil.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("Cannot read verification key: %v", err)
	}
	if len(verifKey) != crypto.PublicKeySize {
		return nil, fmt.Errorf("Verification key must be %d bytes (got %d)",
			crypto.PublicKeySize, len(verifKey))
	}
	return verifKey, nil
}
