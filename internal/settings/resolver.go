package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/systmms/dsconf/internal/config"
	"github.com/systmms/dsconf/internal/logging"
	"github.com/systmms/dsconf/pkg/secretstore"
)

// Indirection markers.
const (
	EnvMarker    = "ENV/"
	SecretMarker = "SEC/"
	secretSuffix = "_Secret#"
)

// providerMarkers maps <PROVIDER>_Secret# prefixes to the store scope
// they pin.
var providerMarkers = []struct {
	prefix string
	scope  secretstore.Priority
}{
	{"AWS" + secretSuffix, secretstore.PriorityAWS},
	{"Azure" + secretSuffix, secretstore.PriorityAzure},
	{"AZURE" + secretSuffix, secretstore.PriorityAzure},
	{"GCP" + secretSuffix, secretstore.PriorityGCP},
}

// SecretGetter resolves SEC/ and provider markers. *secrets.Manager
// satisfies it.
type SecretGetter interface {
	Get(ctx context.Context, key, def string, scope secretstore.Priority) string
}

// unscoped matches secrets.Unscoped.
const unscoped secretstore.Priority = 0

// Roots are the directories the resolver loads from.
type Roots struct {
	WorkingDir string // the layer is read from WorkingDir/config
	AppData    string
	UserData   string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithSecrets binds the secrets manager at construction.
func WithSecrets(s SecretGetter) Option {
	return func(r *Resolver) {
		r.secrets = s
	}
}

// Resolver merges override stores and file layers.
type Resolver struct {
	mu        sync.RWMutex
	layers    []*Layer         // descending priority
	overrides []*OverrideStore // APPLICATION before USER
	secrets   SecretGetter
	logger    *logging.Logger
}

// NewResolver orders layers by descending priority and overrides
// APPLICATION first.
func NewResolver(layers []*Layer, overrides []*OverrideStore, opts ...Option) *Resolver {
	r := &Resolver{logger: logging.Nop()}
	for _, opt := range opts {
		opt(r)
	}

	r.layers = append([]*Layer(nil), layers...)
	sortLayers(r.layers)
	r.overrides = append([]*OverrideStore(nil), overrides...)
	sortOverrides(r.overrides)
	return r
}

// Load reads the three conventional layers and opens the override stores.
// The APPLICATION override store is optional; a failure there is logged.
func Load(roots Roots, opts ...Option) (*Resolver, error) {
	r := NewResolver(nil, nil, opts...)

	dirs := []struct {
		dir      string
		priority int
	}{
		{filepath.Join(roots.WorkingDir, "config"), PriorityWorkingDir},
		{roots.AppData, PriorityAppData},
		{roots.UserData, PriorityUserData},
	}
	var layers []*Layer
	for _, d := range dirs {
		if d.dir == "" {
			continue
		}
		l, err := LoadLayer(d.dir, d.priority)
		if err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}

	var overrides []*OverrideStore
	if roots.AppData != "" {
		s, err := OpenOverrideStore(roots.AppData, secretstore.PriorityApplication)
		if err != nil {
			r.logger.Warn("Skipping support for application scope persistent store: %v", err)
		} else {
			overrides = append(overrides, s)
		}
	}
	user, err := OpenOverrideStore(roots.UserData, secretstore.PriorityUser)
	if err != nil {
		return nil, err
	}
	overrides = append(overrides, user)

	r.layers = layers
	sortLayers(r.layers)
	r.overrides = overrides
	sortOverrides(r.overrides)
	return r, nil
}

// BindSecrets sets the secrets manager used for SEC/ and provider markers.
func (r *Resolver) BindSecrets(s SecretGetter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.secrets = s
}

// Layers returns the file layers in descending priority.
func (r *Resolver) Layers() []*Layer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Layer(nil), r.layers...)
}

// Resolve returns the raw value of key: the first non-empty override,
// else the value from the highest layer holding the key.
func (r *Resolver) Resolve(key string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, o := range r.overrides {
		v, ok, err := o.Get(key)
		if err != nil {
			r.logger.Warn("Reading %s override %s: %v", o.Scope(), key, err)
			continue
		}
		if ok && !isEmpty(v) {
			return v, true
		}
	}

	for _, l := range r.layers {
		if v, ok := l.Lookup(key); ok {
			return v, true
		}
	}
	return nil, false
}

// Get resolves key and follows any indirection marker. Missing and empty
// values yield def.
func (r *Resolver) Get(ctx context.Context, key string, def interface{}) interface{} {
	v, ok := r.lookup(ctx, key)
	if !ok || isFalsy(v) {
		return def
	}
	return v
}

// GetString returns key as a string.
func (r *Resolver) GetString(ctx context.Context, key, def string) string {
	v, ok := r.lookup(ctx, key)
	if !ok || isEmpty(v) {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// GetInt returns key as an int. Values that do not convert yield def.
func (r *Resolver) GetInt(ctx context.Context, key string, def int) int {
	v, ok := r.lookup(ctx, key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return def
}

// GetBool returns key as a bool. Values that do not convert yield def.
func (r *Resolver) GetBool(ctx context.Context, key string, def bool) bool {
	v, ok := r.lookup(ctx, key)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed
		}
	}
	return def
}

// GetStringMap returns key as a mapping, or nil.
func (r *Resolver) GetStringMap(ctx context.Context, key string) map[string]interface{} {
	v, ok := r.lookup(ctx, key)
	if !ok {
		return nil
	}
	m, _ := asMap(v)
	return m
}

// SecretsManager decodes the secrets_manager section.
func (r *Resolver) SecretsManager() (config.SecretsManager, error) {
	raw, _ := r.Resolve(SecretsManagerSection)
	return config.DecodeSecretsManager(raw)
}

// Set writes value to the override store of scope. File layers are never
// changed. A scope without an override store is ignored with a warning.
func (r *Resolver) Set(key string, value interface{}, scope secretstore.Priority) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, o := range r.overrides {
		if o.Scope() == scope {
			return o.Put(key, value)
		}
	}
	r.logger.Warn("No persistent settings store for scope %s; %s not saved", scope, key)
	return nil
}

// Unset removes key from the override store of scope.
func (r *Resolver) Unset(key string, scope secretstore.Priority) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, o := range r.overrides {
		if o.Scope() == scope {
			return o.Delete(key)
		}
	}
	return nil
}

func (r *Resolver) lookup(ctx context.Context, key string) (interface{}, bool) {
	v, ok := r.Resolve(key)
	if !ok {
		return nil, false
	}
	s, isString := v.(string)
	if !isString {
		return v, true
	}
	return r.indirect(ctx, key, s), true
}

// indirect follows an indirection marker in s, or returns s unchanged.
func (r *Resolver) indirect(ctx context.Context, key, s string) interface{} {
	if strings.HasPrefix(s, EnvMarker) {
		name := strings.TrimSpace(strings.TrimPrefix(s, EnvMarker))
		if env, ok := os.LookupEnv(name); ok {
			return env
		}
		return s
	}

	if strings.HasPrefix(s, SecretMarker) {
		return r.secret(ctx, key, strings.TrimSpace(strings.TrimPrefix(s, SecretMarker)), unscoped)
	}

	for _, m := range providerMarkers {
		if strings.HasPrefix(s, m.prefix) {
			return r.secret(ctx, key, strings.TrimSpace(strings.TrimPrefix(s, m.prefix)), m.scope)
		}
	}
	return s
}

func (r *Resolver) secret(ctx context.Context, key, name string, scope secretstore.Priority) string {
	r.mu.RLock()
	s := r.secrets
	r.mu.RUnlock()

	if s == nil {
		r.logger.Warn("Setting %s refers to secret %s but no secrets manager is bound", key, name)
		return ""
	}
	return s.Get(ctx, name, "", scope)
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]interface{}:
		return len(t) == 0
	}
	return false
}

func isFalsy(v interface{}) bool {
	if isEmpty(v) {
		return true
	}
	switch t := v.(type) {
	case bool:
		return !t
	case int:
		return t == 0
	case float64:
		return t == 0
	case []interface{}:
		return len(t) == 0
	}
	return false
}

func sortLayers(layers []*Layer) {
	sort.SliceStable(layers, func(i, j int) bool {
		return layers[i].Priority > layers[j].Priority
	})
}

func sortOverrides(overrides []*OverrideStore) {
	sort.SliceStable(overrides, func(i, j int) bool {
		return overrides[i].Scope() > overrides[j].Scope()
	})
}
