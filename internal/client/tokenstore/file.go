package tokenstore

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/and161185/makerhub/internal/crypto"
)

// FileName is the token document name inside the config directory.
const FileName = "tokens.json"

// DefaultDir returns $XDG_CONFIG_HOME/makerhub or ~/.config/makerhub.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "makerhub")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "makerhub")
}

// FileBackend stores the token document as plaintext JSON (mode 0600).
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend writing to path.
func NewFileBackend(path string) *FileBackend { return &FileBackend{path: path} }

// Path returns the document location.
func (f *FileBackend) Path() string { return f.path }

func (f *FileBackend) Load() (Values, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Values{}, nil
	}
	if err != nil {
		return nil, err
	}
	var v Values
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("tokenstore: parse %s: %w", f.path, err)
	}
	return v, nil
}

func (f *FileBackend) Save(v Values) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(f.path, b)
}

func (f *FileBackend) Delete() error { return removeIfExists(f.path) }

// sealedDoc is the on-disk envelope of SealedFileBackend.
type sealedDoc struct {
	Version int    `json:"v"`
	Salt    string `json:"salt"`
	Data    string `json:"data"`
}

const sealedVersion = 1

var sealedAAD = []byte("makerhub-tokens-v1")

// ErrWrongPassphrase is returned when a sealed document cannot be opened.
var ErrWrongPassphrase = errors.New("tokenstore: cannot open token file (wrong passphrase?)")

// SealedFileBackend encrypts the token document under a passphrase-derived key.
// Every Save uses a fresh salt and nonce.
type SealedFileBackend struct {
	path       string
	passphrase []byte
}

// NewSealedFileBackend returns an encrypting backend writing to path.
func NewSealedFileBackend(path, passphrase string) *SealedFileBackend {
	return &SealedFileBackend{path: path, passphrase: []byte(passphrase)}
}

func (s *SealedFileBackend) Load() (Values, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Values{}, nil
	}
	if err != nil {
		return nil, err
	}
	var doc sealedDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("tokenstore: parse %s: %w", s.path, err)
	}
	if doc.Version != sealedVersion {
		return nil, fmt.Errorf("tokenstore: unsupported sealed version %d", doc.Version)
	}
	salt, err := base64.StdEncoding.DecodeString(doc.Salt)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: bad salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: bad data: %w", err)
	}
	plain, err := crypto.Open(crypto.DeriveSealKey(s.passphrase, salt), sealed, sealedAAD)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	var v Values
	if err := json.Unmarshal(plain, &v); err != nil {
		return nil, fmt.Errorf("tokenstore: parse sealed payload: %w", err)
	}
	return v, nil
}

func (s *SealedFileBackend) Save(v Values) error {
	plain, err := json.Marshal(v)
	if err != nil {
		return err
	}
	salt, err := crypto.RandBytes(16)
	if err != nil {
		return err
	}
	sealed, err := crypto.Seal(crypto.DeriveSealKey(s.passphrase, salt), plain, sealedAAD)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(sealedDoc{
		Version: sealedVersion,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Data:    base64.StdEncoding.EncodeToString(sealed),
	}, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(s.path, b)
}

func (s *SealedFileBackend) Delete() error { return removeIfExists(s.path) }

// writeAtomic writes data to a temp file next to path and renames it over path.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("tokenstore: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("tokenstore: rename temp file: %w", err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
