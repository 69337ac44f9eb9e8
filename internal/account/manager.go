// Package account keeps the run-scoped sizing profiles: account size, risk
// budget and alert threshold.
package account

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"SwingScanner/internal/model"
)

// ErrUnknownAccount is returned for a profile name that does not exist.
var ErrUnknownAccount = errors.New("unknown account")

var validate = validator.New()

// Manager serves and updates account profiles with concurrency safety.
type Manager struct {
	mu       sync.Mutex
	profiles *Profiles
	filePath string
}

// NewManager loads profiles from filePath. A fresh file is seeded with
// fallback as the default profile.
func NewManager(filePath string, fallback model.Account) (*Manager, error) {
	profiles, err := LoadProfiles(filePath)
	if err != nil {
		return nil, err
	}

	m := &Manager{profiles: profiles, filePath: filePath}
	if len(profiles.Accounts) == 0 {
		if err := validate.Struct(fallback); err != nil {
			return nil, fmt.Errorf("default account: %w", err)
		}
		profiles.Accounts[fallback.Name] = fallback
		profiles.Default = fallback.Name
		if err := m.save(); err != nil {
			return nil, err
		}
		log.Info().Str("account", fallback.Name).Str("file", filePath).Msg("seeded account profiles")
	}
	if _, ok := profiles.Accounts[profiles.Default]; !ok {
		return nil, fmt.Errorf("default account %q: %w", profiles.Default, ErrUnknownAccount)
	}
	return m, nil
}

// Get returns the named profile, or the default one for an empty name.
func (m *Manager) Get(name string) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name == "" {
		name = m.profiles.Default
	}
	acct, ok := m.profiles.Accounts[name]
	if !ok {
		return model.Account{}, fmt.Errorf("%q: %w", name, ErrUnknownAccount)
	}
	return acct, nil
}

// Put validates and stores a profile. makeDefault also selects it as the
// default.
func (m *Manager) Put(acct model.Account, makeDefault bool) error {
	if err := validate.Struct(acct); err != nil {
		return fmt.Errorf("account %q: %w", acct.Name, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles.Accounts[acct.Name] = acct
	if makeDefault {
		m.profiles.Default = acct.Name
	}
	return m.save()
}

// Names returns the profile names, sorted, and the default name.
func (m *Manager) Names() (names []string, def string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for n := range m.profiles.Accounts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, m.profiles.Default
}

func (m *Manager) save() error {
	if err := SaveProfiles(m.filePath, m.profiles); err != nil {
		log.Error().Err(err).Str("file", m.filePath).Msg("save account profiles")
		return err
	}
	return nil
}
