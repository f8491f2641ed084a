package providers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/systmms/dsconf/internal/keyring"
	"github.com/systmms/dsconf/internal/logging"
	"github.com/systmms/dsconf/internal/machineid"
	"github.com/systmms/dsconf/internal/secure"
	"github.com/systmms/dsconf/internal/vault"
	"github.com/systmms/dsconf/pkg/secretstore"
)

// Local store names double as the group name inside the container.
const (
	UserLocalStoreName = "User_Local_Store"
	AppLocalStoreName  = "App_Local_Store"
	VaultFileName      = "secrets.store"
)

// LocalVaultConfig configures a LocalVaultStore.
type LocalVaultConfig struct {
	Name     string
	Priority secretstore.Priority
	Root     string // directory holding secrets.store

	// Password sources, tried in order before the machine-derived one.
	Password    string
	EnvPassword string
	UseKeyring  bool
}

// LocalVaultOption configures optional LocalVaultStore behaviour.
type LocalVaultOption func(*localVaultOptions)

type localVaultOptions struct {
	logger     *logging.Logger
	machineID  machineid.Reader
	iterations int
}

// WithLocalLogger sets the logger.
func WithLocalLogger(logger *logging.Logger) LocalVaultOption {
	return func(o *localVaultOptions) {
		o.logger = logger
	}
}

// WithMachineIDReader replaces the platform identifier source used for
// the machine-derived password.
func WithMachineIDReader(read machineid.Reader) LocalVaultOption {
	return func(o *localVaultOptions) {
		o.machineID = read
	}
}

// WithVaultIterations sets the PBKDF2 iteration count for containers this
// store bootstraps.
func WithVaultIterations(n int) LocalVaultOption {
	return func(o *localVaultOptions) {
		o.iterations = n
	}
}

// LocalVaultStore keeps secrets in an encrypted container file, one group
// per store.
type LocalVaultStore struct {
	mu        sync.Mutex
	name      string
	priority  secretstore.Priority
	path      string
	password  *secure.Password
	container *vault.Container
	logger    *logging.Logger
}

// NewLocalVaultStore opens the container under cfg.Root, bootstrapping it
// when missing. ENV-tagged entries are exported to the process
// environment.
func NewLocalVaultStore(ctx context.Context, cfg LocalVaultConfig, opts ...LocalVaultOption) (*LocalVaultStore, error) {
	o := localVaultOptions{
		logger:    logging.Nop(),
		machineID: machineid.ID,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(cfg.Root, 0o700); err != nil {
		return nil, secretstore.NewStoreError(cfg.Name, "open", "cannot create store directory "+cfg.Root, err)
	}
	path := filepath.Join(cfg.Root, VaultFileName)

	password, err := resolveVaultPassword(ctx, cfg, path, o)
	if err != nil {
		return nil, err
	}

	s := &LocalVaultStore{
		name:     cfg.Name,
		priority: cfg.Priority,
		path:     path,
		password: secure.NewPassword(password),
		logger:   o.logger,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.bootstrap(password, o.iterations); err != nil {
			s.password.Destroy()
			return nil, err
		}
	}

	c, err := vault.Open(path, password)
	if err != nil {
		s.password.Destroy()
		return nil, secretstore.NewStoreError(cfg.Name, "open", "failed to open secrets store "+path, err)
	}
	s.container = c

	if _, ok := c.FindGroup(s.name); !ok {
		c.AddGroup(s.name)
		if err := s.save(); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	s.exportEnv()
	s.logger.Info("Opened secrets store %s at %s", s.name, path)
	return s, nil
}

func resolveVaultPassword(ctx context.Context, cfg LocalVaultConfig, path string, o localVaultOptions) (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}
	if cfg.EnvPassword != "" {
		return cfg.EnvPassword, nil
	}
	if cfg.UseKeyring {
		pw, err := keyring.GetPassword(path)
		switch {
		case err == nil && pw != "":
			return pw, nil
		case err != nil && !errors.Is(err, keyring.ErrNotFound):
			o.logger.Warn("Keyring lookup for %s failed, using machine password: %v", path, err)
		}
	}

	pw, err := machineid.PasswordFrom(ctx, o.machineID, path)
	if err != nil {
		return "", secretstore.NewStoreError(cfg.Name, "open", "failed to determine unique machine ID", err)
	}
	return pw, nil
}

// bootstrap writes the template container, re-keys it to password and
// creates the store group.
func (s *LocalVaultStore) bootstrap(password string, iterations int) error {
	s.logger.Info("Creating secrets store (%s) at %s", s.name, s.path)

	var opts []vault.Option
	if iterations > 0 {
		opts = append(opts, vault.WithIterations(iterations))
	}
	if err := vault.CreateTemplate(s.path, opts...); err != nil {
		return secretstore.NewStoreError(s.name, "create", "failed to write template", err)
	}

	c, err := vault.Open(s.path, vault.TemplatePassword)
	if err != nil {
		return secretstore.NewStoreError(s.name, "create", "failed to open template", err)
	}
	defer c.Close()

	if err := c.SetPassword(password); err != nil {
		return secretstore.NewStoreError(s.name, "create", "failed to set password", err)
	}
	c.AddGroup(s.name)
	if err := c.Save(); err != nil {
		return secretstore.NewStoreError(s.name, "create", "failed to save", err)
	}

	s.logger.Info("Successfully created secrets store")
	return nil
}

// Name returns the store name.
func (s *LocalVaultStore) Name() string {
	return s.name
}

// Priority returns the store priority.
func (s *LocalVaultStore) Priority() secretstore.Priority {
	return s.priority
}

// Path returns the container file path.
func (s *LocalVaultStore) Path() string {
	return s.path
}

// Get returns the value of the entry titled key, or def when it is absent
// or empty.
func (s *LocalVaultStore) Get(_ context.Context, key, def string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.findEntry(key); e != nil && e.Password != "" {
		return e.Password
	}
	return def
}

// Set replaces any entry titled key with a new one holding value. The
// existing ENV or HIDDEN tag is kept; use AddSecret to change it.
func (s *LocalVaultStore) Set(ctx context.Context, key, value string) error {
	tag := secretstore.TagNone

	s.mu.Lock()
	if e := s.findEntry(key); e != nil {
		tag = secretstore.ParseTag(e.Notes)
	}
	s.mu.Unlock()

	return s.AddSecret(ctx, key, value, tag)
}

// AddSecret stores value under key with tag. ENV entries are exported
// immediately.
func (s *LocalVaultStore) AddSecret(_ context.Context, key, value string, tag secretstore.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.refresh("set")
	if err != nil {
		return err
	}
	g.DeleteEntry(key)
	g.AddEntry(&vault.Entry{Title: key, Password: value, Notes: string(tag)})

	if err := s.save(); err != nil {
		return err
	}

	if tag == secretstore.TagEnv {
		if err := os.Setenv(key, value); err != nil {
			s.logger.Warn("Failed to export %s: %v", key, err)
		}
	}
	return nil
}

// Delete removes every entry titled key. Missing keys are not an error.
func (s *LocalVaultStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.refresh("delete")
	if err != nil {
		return err
	}
	g.DeleteEntry(key)
	return s.save()
}

// Names lists entry titles in sorted order. HIDDEN entries are only
// included when includeHidden is set.
func (s *LocalVaultStore) Names(_ context.Context, includeHidden bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.group("list")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(g.Entries))
	seen := make(map[string]bool, len(g.Entries))
	for _, e := range g.Entries {
		if !includeHidden && secretstore.ParseTag(e.Notes) == secretstore.TagHidden {
			continue
		}
		if seen[e.Title] {
			continue
		}
		seen[e.Title] = true
		names = append(names, e.Title)
	}
	sort.Strings(names)
	return names, nil
}

// Rekey changes the container password.
func (s *LocalVaultStore) Rekey(_ context.Context, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.container.SetPassword(password); err != nil {
		return secretstore.NewStoreError(s.name, "rekey", "failed to set password", err)
	}
	if err := s.save(); err != nil {
		return err
	}

	s.password.Destroy()
	s.password = secure.NewPassword(password)
	return nil
}

// Close releases the container and wipes the held password.
func (s *LocalVaultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.password.Destroy()
	if s.container == nil {
		return nil
	}
	return s.container.Close()
}

func (s *LocalVaultStore) findEntry(key string) *vault.Entry {
	g, ok := s.container.FindGroup(s.name)
	if !ok {
		return nil
	}
	e, ok := g.FindEntry(key)
	if !ok {
		return nil
	}
	return e
}

func (s *LocalVaultStore) group(op string) (*vault.Group, error) {
	g, ok := s.container.FindGroup(s.name)
	if !ok {
		return nil, secretstore.NewStoreError(s.name, op, "store group missing from "+s.path, nil)
	}
	return g, nil
}

// refresh reloads the container before a mutation so writes from other
// handles on the same file are not overwritten. Callers hold s.mu.
func (s *LocalVaultStore) refresh(op string) (*vault.Group, error) {
	err := s.container.Reload()
	if errors.Is(err, vault.ErrBadPassword) {
		err = s.reopen()
	}
	if err != nil {
		return nil, secretstore.NewStoreError(s.name, op, "failed to reload secrets store", err)
	}
	return s.container.AddGroup(s.name), nil
}

// save writes the container and reloads it so the in-memory view matches
// the file. Callers hold s.mu.
func (s *LocalVaultStore) save() error {
	if err := s.container.Save(); err != nil {
		return secretstore.NewStoreError(s.name, "save", "failed to save secrets store", err)
	}

	err := s.container.Reload()
	if errors.Is(err, vault.ErrBadPassword) {
		// Another process re-keyed the file with the same password.
		err = s.reopen()
	}
	if err != nil {
		return secretstore.NewStoreError(s.name, "reload", "failed to reload secrets store", err)
	}
	return nil
}

func (s *LocalVaultStore) reopen() error {
	password, err := s.password.Reveal()
	if err != nil {
		return err
	}
	c, err := vault.Open(s.path, password)
	if err != nil {
		return err
	}
	_ = s.container.Close()
	s.container = c
	return nil
}

func (s *LocalVaultStore) exportEnv() {
	g, ok := s.container.FindGroup(s.name)
	if !ok {
		return
	}
	for _, e := range g.Entries {
		if secretstore.ParseTag(e.Notes) != secretstore.TagEnv {
			continue
		}
		if err := os.Setenv(e.Title, e.Password); err != nil {
			s.logger.Warn("Failed to export %s: %v", e.Title, err)
		}
	}
}
