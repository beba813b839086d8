package utils

import (
	"io/ioutil"
	"os"

	"github.com/keytrans-sys/keytrans-go/storage/kv"
	"github.com/keytrans-sys/keytrans-go/storage/kv/leveldbkv"
)

// WithDB runs f against a fresh LevelDB instance backed by a temporary
// directory, and removes the directory afterwards.
func WithDB(f func(kv.DB)) {
	dir, err := ioutil.TempDir("", "keytransdb")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	db := leveldbkv.OpenDB(dir)
	defer db.Close()
	f(db)
}
