package account

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"SwingScanner/internal/model"
)

// Profiles is the on-disk set of account profiles.
type Profiles struct {
	Default   string                   `json:"default"`
	Accounts  map[string]model.Account `json:"accounts"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// LoadProfiles reads profiles from a JSON file. Returns an empty set if the file doesn't exist.
func LoadProfiles(filePath string) (*Profiles, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Profiles{Accounts: map[string]model.Account{}}, nil
		}
		return nil, err
	}
	var p Profiles
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filePath, err)
	}
	if p.Accounts == nil {
		p.Accounts = map[string]model.Account{}
	}
	return &p, nil
}

// SaveProfiles writes profiles to a JSON file, creating its directory.
func SaveProfiles(filePath string, p *Profiles) error {
	p.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(filePath, data, 0644)
}
