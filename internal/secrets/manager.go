package secrets

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sort"
	"sync"

	"github.com/systmms/dsconf/internal/config"
	"github.com/systmms/dsconf/internal/logging"
	"github.com/systmms/dsconf/internal/providers"
	"github.com/systmms/dsconf/pkg/secretstore"
)

// Unscoped asks the manager to consult every store.
const Unscoped secretstore.Priority = 0

// DefaultSecretLength is the length Generate uses when none is given.
const DefaultSecretLength = 10

const secretAlphabet = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// ErrSecretLength is returned by Generate for lengths the alphabet cannot
// satisfy without repeating a character.
var ErrSecretLength = fmt.Errorf("secret length must be between 1 and %d", len(secretAlphabet))

// Config holds what the manager needs to build its stores.
type Config struct {
	UserRoot string // directory of the USER local store
	AppRoot  string // directory of the APP local store, optional

	Password       string // explicit vault password
	EnvPassword    string // SECRETS_STORE_PASSWORD
	SecretsManager config.SecretsManager
}

// Option configures New.
type Option func(*options)

type options struct {
	logger    *logging.Logger
	registry  *providers.Registry
	localOpts []providers.LocalVaultOption
}

// WithLogger sets the logger passed to the manager and its stores.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegistry replaces the remote store registry.
func WithRegistry(r *providers.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithLocalVaultOptions passes options to both local stores.
func WithLocalVaultOptions(opts ...providers.LocalVaultOption) Option {
	return func(o *options) {
		o.localOpts = append(o.localOpts, opts...)
	}
}

// Manager routes secret operations to an ordered set of stores.
type Manager struct {
	mu     sync.RWMutex
	stores []secretstore.Store
	logger *logging.Logger
}

// New builds the USER local store, then the APP local store and every
// configured remote store. Only a USER store failure is returned; the
// others are logged and left out.
func New(ctx context.Context, cfg Config, opts ...Option) (*Manager, error) {
	o := options{
		logger:   logging.Nop(),
		registry: providers.NewRegistry(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	localOpts := append([]providers.LocalVaultOption{providers.WithLocalLogger(o.logger)}, o.localOpts...)

	local := func(name string, prio secretstore.Priority, root string) (secretstore.Store, error) {
		return providers.NewLocalVaultStore(ctx, providers.LocalVaultConfig{
			Name:        name,
			Priority:    prio,
			Root:        root,
			Password:    cfg.Password,
			EnvPassword: cfg.EnvPassword,
			UseKeyring:  cfg.SecretsManager.UseKeyring,
		}, localOpts...)
	}

	user, err := local(providers.UserLocalStoreName, secretstore.PriorityUser, cfg.UserRoot)
	if err != nil {
		return nil, err
	}
	stores := []secretstore.Store{user}

	if cfg.AppRoot != "" {
		app, err := local(providers.AppLocalStoreName, secretstore.PriorityApplication, cfg.AppRoot)
		if err != nil {
			o.logger.Warn("Skipping APP Local Secret Store: %v", err)
		} else {
			stores = append(stores, app)
		}
	}

	for _, f := range o.registry.Remotes() {
		if !f.Present(cfg.SecretsManager) {
			continue
		}
		s, err := f.New(ctx, cfg.SecretsManager, o.logger)
		if err != nil {
			o.logger.Warn("Skipping %s secrets store: %v", f.Block, err)
			continue
		}
		stores = append(stores, s)
	}

	return NewWithStores(o.logger, stores...), nil
}

// NewWithStores builds a manager over already constructed stores. When two
// stores share a priority the first one wins.
func NewWithStores(logger *logging.Logger, stores ...secretstore.Store) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	InitMetrics()

	seen := make(map[secretstore.Priority]bool, len(stores))
	active := make([]secretstore.Store, 0, len(stores))
	for _, s := range stores {
		if seen[s.Priority()] {
			logger.Warn("Ignoring secrets store %s: priority %s already taken", s.Name(), s.Priority())
			continue
		}
		seen[s.Priority()] = true
		active = append(active, s)
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority() < active[j].Priority()
	})

	return &Manager{stores: active, logger: logger}
}

// Stores returns the active stores in ascending priority order.
func (m *Manager) Stores() []secretstore.Store {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]secretstore.Store(nil), m.stores...)
}

// Store returns the store registered for scope.
func (m *Manager) Store(scope secretstore.Priority) (secretstore.Store, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.stores {
		if s.Priority() == scope {
			return s, true
		}
	}
	return nil, false
}

// Get returns the secret stored under key. With a scope only that store is
// asked; otherwise the first non-empty value in priority order wins. A miss
// logs a warning and returns def.
func (m *Manager) Get(ctx context.Context, key, def string, scope secretstore.Priority) string {
	if scope != Unscoped {
		s, ok := m.Store(scope)
		if !ok {
			m.logger.Warn("No secrets store for scope %s. Returning default value for %s.", scope, key)
			recordLookup(scope.String(), OutcomeDefault)
			return def
		}
		if v := s.Get(ctx, key, ""); v != "" {
			recordLookup(s.Name(), OutcomeHit)
			return v
		}
		m.logger.Warn("The Secret %s was not found in %s. Returning default value.", key, s.Name())
		recordLookup(s.Name(), OutcomeDefault)
		return def
	}

	for _, s := range m.Stores() {
		if v := s.Get(ctx, key, ""); v != "" {
			recordLookup(s.Name(), OutcomeHit)
			return v
		}
		recordLookup(s.Name(), OutcomeMiss)
	}

	m.logger.Warn("The Secret %s was not found. Returning default value.", key)
	recordLookup("", OutcomeDefault)
	return def
}

// Set writes value to the store matching scope, USER when unscoped. A
// scope without a store is ignored.
func (m *Manager) Set(ctx context.Context, key, value string, scope secretstore.Priority) error {
	s, ok := m.target("set", key, scope)
	if !ok {
		return nil
	}
	m.logger.Debug("Setting %s in %s to %s", key, s.Name(), logging.Secret(value))
	return s.Set(ctx, key, value)
}

// Delete removes key from the store matching scope, USER when unscoped. A
// scope without a store is ignored.
func (m *Manager) Delete(ctx context.Context, key string, scope secretstore.Priority) error {
	s, ok := m.target("delete", key, scope)
	if !ok {
		return nil
	}
	return s.Delete(ctx, key)
}

// tagger is implemented by stores that keep a tag per entry.
type tagger interface {
	AddSecret(ctx context.Context, key, value string, tag secretstore.Tag) error
}

// AddSecret writes a tagged entry. Stores without tag support accept only
// TagNone.
func (m *Manager) AddSecret(ctx context.Context, key, value string, tag secretstore.Tag, scope secretstore.Priority) error {
	s, ok := m.target("set", key, scope)
	if !ok {
		return nil
	}
	m.logger.Debug("Adding %s to %s with tag %s: %s", key, s.Name(), tag, logging.Secret(value))
	if t, ok := s.(tagger); ok {
		return t.AddSecret(ctx, key, value, tag)
	}
	if tag != secretstore.TagNone {
		return secretstore.NewStoreError(s.Name(), "set", fmt.Sprintf("store does not support the %s tag", tag), nil)
	}
	return s.Set(ctx, key, value)
}

// Generate creates a random secret of length distinct characters drawn
// from lowercase and uppercase letters, digits and punctuation, stores it
// under key and returns it.
func (m *Manager) Generate(ctx context.Context, key string, length int, scope secretstore.Priority) (string, error) {
	if length == 0 {
		length = DefaultSecretLength
	}
	secret, err := randomSecret(length)
	if err != nil {
		return "", err
	}
	if err := m.Set(ctx, key, secret, scope); err != nil {
		return "", err
	}
	return secret, nil
}

// Names lists the secret names of every store that can enumerate them, or
// of the scoped store only.
func (m *Manager) Names(ctx context.Context, scope secretstore.Priority, includeHidden bool) ([]string, error) {
	var names []string
	seen := make(map[string]bool)

	for _, s := range m.Stores() {
		if scope != Unscoped && s.Priority() != scope {
			continue
		}
		l, ok := s.(secretstore.Lister)
		if !ok {
			continue
		}
		got, err := l.Names(ctx, includeHidden)
		if err != nil {
			return nil, err
		}
		for _, n := range got {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// Close releases every store that holds resources.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, s := range m.stores {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	m.stores = nil
	return errors.Join(errs...)
}

func (m *Manager) target(op, key string, scope secretstore.Priority) (secretstore.Store, bool) {
	if scope == Unscoped {
		m.logger.Warn("No scope was provided. Setting scope to USER.")
		scope = secretstore.PriorityUser
	}
	s, ok := m.Store(scope)
	if !ok {
		m.logger.Debug("No secrets store for scope %s; ignoring %s of %s", scope, op, key)
	}
	return s, ok
}

func randomSecret(length int) (string, error) {
	if length < 1 || length > len(secretAlphabet) {
		return "", ErrSecretLength
	}

	pool := []byte(secretAlphabet)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool)-i)))
		if err != nil {
			return "", err
		}
		j := i + int(n.Int64())
		pool[i], pool[j] = pool[j], pool[i]
	}
	return string(pool[:length]), nil
}
