package vault

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// TemplatePassword seals freshly created templates.
const TemplatePassword = "password"

const formatVersion = "1"

var (
	configBucket  = []byte("config")
	payloadBucket = []byte("payload")

	keyVersion    = []byte("version")
	keySalt       = []byte("salt")
	keyIterations = []byte("iterations")
	keyModified   = []byte("modified")
	keyData       = []byte("data")
)

var (
	// ErrBadPassword is returned when the container cannot be decrypted.
	ErrBadPassword = errors.New("invalid vault password")
	// ErrNotContainer is returned for files that are not vault containers.
	ErrNotContainer = errors.New("not a vault container")
	// ErrClosed is returned by operations on a closed container.
	ErrClosed = errors.New("vault is closed")
)

var boltOptions = &bolt.Options{Timeout: time.Second}

// Entry is a single titled secret.
type Entry struct {
	Title    string `json:"title"`
	Password string `json:"password"`
	Notes    string `json:"notes"`
}

// Group is a named collection of entries.
type Group struct {
	Name    string   `json:"name"`
	Entries []*Entry `json:"entries"`
}

// FindEntry returns the first entry titled title.
func (g *Group) FindEntry(title string) (*Entry, bool) {
	for _, e := range g.Entries {
		if e.Title == title {
			return e, true
		}
	}
	return nil, false
}

// AddEntry appends e. Titles are not required to be unique.
func (g *Group) AddEntry(e *Entry) {
	g.Entries = append(g.Entries, e)
}

// DeleteEntry removes every entry titled title and reports whether any
// were removed.
func (g *Group) DeleteEntry(title string) bool {
	kept := g.Entries[:0]
	removed := false
	for _, e := range g.Entries {
		if e.Title == title {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(g.Entries); i++ {
		g.Entries[i] = nil
	}
	g.Entries = kept
	return removed
}

type payload struct {
	Groups []*Group `json:"groups"`
}

// Option configures container creation.
type Option func(*createOptions)

type createOptions struct {
	iterations int
}

// WithIterations overrides the PBKDF2 iteration count for new containers.
func WithIterations(n int) Option {
	return func(o *createOptions) {
		if n > 0 {
			o.iterations = n
		}
	}
}

// Container is an open vault. It is safe for concurrent use.
type Container struct {
	mu         sync.Mutex
	path       string
	salt       []byte
	iterations int
	key        []byte
	groups     []*Group
	closed     bool
}

// CreateTemplate writes an empty container sealed with TemplatePassword to
// path. An existing file at path is replaced.
func CreateTemplate(path string, opts ...Option) error {
	o := createOptions{iterations: DefaultIterations}
	for _, opt := range opts {
		opt(&o)
	}

	salt, err := newSalt()
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	c := &Container{
		path:       path,
		salt:       salt,
		iterations: o.iterations,
		key:        deriveKey(TemplatePassword, salt, o.iterations),
	}
	defer c.Close()

	return c.Save()
}

// Open decrypts the container at path with password.
func Open(path, password string) (*Container, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	salt, iterations, sealed, err := readFile(path)
	if err != nil {
		return nil, err
	}

	key := deriveKey(password, salt, iterations)
	groups, err := decode(key, sealed)
	if err != nil {
		clearBytes(key)
		return nil, err
	}

	return &Container{
		path:       path,
		salt:       salt,
		iterations: iterations,
		key:        key,
		groups:     groups,
	}, nil
}

// Path returns the container file path.
func (c *Container) Path() string {
	return c.path
}

// SetPassword re-keys the container in memory with a fresh salt. The file
// is rewritten on the next Save.
func (c *Container) SetPassword(password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	salt, err := newSalt()
	if err != nil {
		return err
	}
	clearBytes(c.key)
	c.salt = salt
	c.key = deriveKey(password, salt, c.iterations)
	return nil
}

// FindGroup returns the group named name.
func (c *Container) FindGroup(name string) (*Group, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, g := range c.groups {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// AddGroup returns the group named name, creating it if needed.
func (c *Container) AddGroup(name string) *Group {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, g := range c.groups {
		if g.Name == name {
			return g
		}
	}
	g := &Group{Name: name}
	c.groups = append(c.groups, g)
	return g
}

// Groups returns the names of all groups.
func (c *Container) Groups() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.groups))
	for _, g := range c.groups {
		names = append(names, g.Name)
	}
	return names
}

// Save seals the in-memory groups and writes them to disk.
func (c *Container) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	plaintext, err := json.Marshal(payload{Groups: c.groups})
	if err != nil {
		return fmt.Errorf("failed to encode vault: %w", err)
	}
	sealed, err := seal(c.key, plaintext)
	clearBytes(plaintext)
	if err != nil {
		return err
	}

	db, err := bolt.Open(c.path, 0o600, boltOptions)
	if err != nil {
		return fmt.Errorf("failed to open vault file: %w", err)
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		config, err := tx.CreateBucketIfNotExists(configBucket)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", configBucket, err)
		}
		data, err := tx.CreateBucketIfNotExists(payloadBucket)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", payloadBucket, err)
		}

		iters := make([]byte, 4)
		binary.BigEndian.PutUint32(iters, uint32(c.iterations))
		modified, _ := time.Now().MarshalBinary()

		for k, v := range map[string][]byte{
			string(keyVersion):    []byte(formatVersion),
			string(keySalt):       c.salt,
			string(keyIterations): iters,
			string(keyModified):   modified,
		} {
			if err := config.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return data.Put(keyData, sealed)
	})
}

// Reload re-reads the container from disk with the cached key, picking up
// writes made by other processes.
func (c *Container) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	salt, iterations, sealed, err := readFile(c.path)
	if err != nil {
		return err
	}

	if string(salt) != string(c.salt) || iterations != c.iterations {
		// Re-keyed elsewhere; the cached key no longer applies.
		return ErrBadPassword
	}

	groups, err := decode(c.key, sealed)
	if err != nil {
		return err
	}
	c.groups = groups
	return nil
}

// Close wipes the cached key. The container cannot be used afterwards.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	clearBytes(c.key)
	c.key = nil
	c.groups = nil
	c.closed = true
	return nil
}

func readFile(path string) (salt []byte, iterations int, sealed []byte, err error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second, ReadOnly: true})
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%w: %v", ErrNotContainer, err)
	}
	defer db.Close()

	err = db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(configBucket)
		data := tx.Bucket(payloadBucket)
		if config == nil || data == nil {
			return ErrNotContainer
		}

		if v := config.Get(keyVersion); string(v) != formatVersion {
			return fmt.Errorf("%w: unsupported version %q", ErrNotContainer, v)
		}

		s := config.Get(keySalt)
		if len(s) != SaltSize {
			return fmt.Errorf("%w: salt missing", ErrNotContainer)
		}
		iters := config.Get(keyIterations)
		if len(iters) != 4 {
			return fmt.Errorf("%w: iterations missing", ErrNotContainer)
		}
		blob := data.Get(keyData)
		if blob == nil {
			return fmt.Errorf("%w: payload missing", ErrNotContainer)
		}

		// Slices are only valid during the transaction.
		salt = append([]byte(nil), s...)
		iterations = int(binary.BigEndian.Uint32(iters))
		sealed = append([]byte(nil), blob...)
		return nil
	})
	return salt, iterations, sealed, err
}

func decode(key, sealed []byte) ([]*Group, error) {
	plaintext, err := open(key, sealed)
	if err != nil {
		if errors.Is(err, ErrAuthFailed) {
			return nil, ErrBadPassword
		}
		return nil, err
	}
	defer clearBytes(plaintext)

	var p payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotContainer, err)
	}
	return p.Groups, nil
}
