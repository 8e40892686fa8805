package push

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/tenantdesk/internal/logger"
)

// VAPIDKeys — пара ключей Web Push.
type VAPIDKeys struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

func (k *VAPIDKeys) Complete() bool {
	return k != nil && k.PublicKey != "" && k.PrivateKey != ""
}

const DefaultVAPIDKeysPath = "config/vapid.json"

var errIncompleteKeys = errors.New("vapid keys incomplete")

// KeysPath: явный путь, затем VAPID_KEYS_FILE, затем config/vapid.json.
func KeysPath(path string) string {
	if path != "" {
		return path
	}
	if p := os.Getenv("VAPID_KEYS_FILE"); p != "" {
		return p
	}
	return DefaultVAPIDKeysPath
}

// KeysFromEnv читает VAPID_PUBLIC_KEY / VAPID_PRIVATE_KEY. nil, если хотя бы одного нет.
func KeysFromEnv() *VAPIDKeys {
	keys := &VAPIDKeys{PublicKey: os.Getenv("VAPID_PUBLIC_KEY"), PrivateKey: os.Getenv("VAPID_PRIVATE_KEY")}
	if !keys.Complete() {
		return nil
	}
	return keys
}

// EnsureVAPIDKeys: env, затем файл; если ничего нет — генерирует пару и пытается сохранить.
func EnsureVAPIDKeys(path string) (*VAPIDKeys, error) {
	if keys := KeysFromEnv(); keys != nil {
		return keys, nil
	}
	path = KeysPath(path)
	if keys, err := LoadVAPIDKeys(path); err == nil {
		return keys, nil
	}
	keys, err := GenerateVAPIDKeys()
	if err != nil {
		return nil, err
	}
	if err := SaveVAPIDKeys(path, keys); err != nil {
		logger.Errorf("push: vapid keys not saved to %s: %v (using generated pair)", path, err)
		return keys, nil
	}
	logger.Infof("push: vapid keys generated -> %s", path)
	return keys, nil
}

func GenerateVAPIDKeys() (*VAPIDKeys, error) {
	// порядок возврата у webpush-go: private, public
	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return nil, fmt.Errorf("generate vapid keys: %w", err)
	}
	return &VAPIDKeys{PublicKey: pub, PrivateKey: priv}, nil
}

func LoadVAPIDKeys(path string) (*VAPIDKeys, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var keys VAPIDKeys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if !keys.Complete() {
		return nil, errIncompleteKeys
	}
	return &keys, nil
}

func SaveVAPIDKeys(path string, keys *VAPIDKeys) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
