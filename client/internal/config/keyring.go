package config

import "github.com/zalando/go-keyring"

const (
	keyringService = "nexdb"
	keyringUser    = "access-key"
)

func storeAccessKey(key string) error {
	return keyring.Set(keyringService, keyringUser, key)
}

func loadAccessKey() (string, error) {
	return keyring.Get(keyringService, keyringUser)
}
