package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DirName is the per-user configuration directory under $HOME.
const DirName = ".hexfleet"

// Profile is an insight provider configuration.
type Profile struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
	// KeyEnv names an environment variable holding the key. It is consulted
	// when APIKey is empty.
	KeyEnv string `yaml:"key_env,omitempty"`
}

// ResolveKey returns the API key of the profile, or "" if none is set.
func (p Profile) ResolveKey() string {
	if strings.TrimSpace(p.APIKey) != "" {
		return p.APIKey
	}
	if p.KeyEnv != "" {
		return os.Getenv(p.KeyEnv)
	}
	return ""
}

// Profiles holds the insight provider profiles
type Profiles struct {
	Profiles []Profile `yaml:"profiles"`
	Selected string    `yaml:"selected,omitempty"`
}

// Find returns the profile with the given name.
func (c *Profiles) Find(name string) (Profile, bool) {
	for _, p := range c.Profiles {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Profile{}, false
}

// Active returns the named profile, the selected one when name is empty,
// or the first one.
func (c *Profiles) Active(name string) (Profile, error) {
	if name == "" {
		name = c.Selected
	}
	if name != "" {
		p, ok := c.Find(name)
		if !ok {
			return Profile{}, fmt.Errorf("profile %q not found", name)
		}
		return p, nil
	}
	if len(c.Profiles) == 0 {
		return Profile{}, fmt.Errorf("no profiles configured")
	}
	return c.Profiles[0], nil
}

// Add inserts or replaces a profile by name.
func (c *Profiles) Add(p Profile) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("profile name is required")
	}
	for i := range c.Profiles {
		if strings.EqualFold(c.Profiles[i].Name, p.Name) {
			c.Profiles[i] = p
			return nil
		}
	}
	c.Profiles = append(c.Profiles, p)
	return nil
}

// Remove deletes a profile by name.
func (c *Profiles) Remove(name string) error {
	for i := range c.Profiles {
		if strings.EqualFold(c.Profiles[i].Name, name) {
			c.Profiles = append(c.Profiles[:i], c.Profiles[i+1:]...)
			if strings.EqualFold(c.Selected, name) {
				c.Selected = ""
			}
			return nil
		}
	}
	return fmt.Errorf("profile %q not found", name)
}

// Dir returns $HOME/.hexfleet.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// LoadProfiles loads profiles from the default location
func LoadProfiles() (*Profiles, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadProfilesFromFile(filepath.Join(dir, "profiles.yaml"))
}

// LoadProfilesFromFile loads profiles from a specific file. A missing file
// yields the default profiles.
func LoadProfilesFromFile(path string) (*Profiles, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaultProfiles(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}

	var profiles Profiles
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file: %w", err)
	}

	return &profiles, nil
}

// SaveProfiles saves profiles to the default location
func SaveProfiles(profiles *Profiles) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return SaveProfilesToFile(profiles, filepath.Join(dir, "profiles.yaml"))
}

// SaveProfilesToFile writes profiles to path, creating its directory.
func SaveProfilesToFile(profiles *Profiles, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}

	// Keys may be stored inline.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}

	return nil
}

func defaultProfiles() *Profiles {
	return &Profiles{
		Profiles: []Profile{
			{
				Name:    "gemini",
				BaseURL: "https://generativelanguage.googleapis.com",
				Model:   "gemini-2.5-flash",
				KeyEnv:  "GEMINI_API_KEY",
			},
			{
				Name: "offline",
			},
		},
	}
}
