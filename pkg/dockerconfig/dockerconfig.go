// Package dockerconfig builds the Docker registry credentials document
// stored in the managed pull secret.
//
// The document is the standard dockerconfigjson payload: a JSON object
// mapping a registry hostname to a username/password pair, base64-encoded
// as a whole when it travels inside secret data.
package dockerconfig

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Auth is a single registry credential entry.
type Auth struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Config is the credentials document: registry hostname -> credentials.
type Config struct {
	Auths map[string]Auth `json:"auths"`
}

// Build assembles the credentials document for a single registry.
// An empty token yields a document with an empty auths map, still valid
// JSON, so downstream writes become empty-credential updates instead of
// aborting the namespace.
func Build(registry, username, token string) Config {
	cfg := Config{Auths: map[string]Auth{}}
	if token != "" {
		cfg.Auths[registry] = Auth{
			Username: username,
			Password: token,
		}
	}
	return cfg
}

// JSON returns the serialized document, the raw value stored under the
// secret's data key.
func (c Config) JSON() ([]byte, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal credentials document: %w", err)
	}
	return raw, nil
}

// Encode returns the base64 form of the JSON document. Secret data values
// are base64 strings on the wire, so this is the representation a JSON
// patch against the data field must carry.
func (c Config) Encode() (string, error) {
	raw, err := c.JSON()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode parses a base64 JSON document back into a Config.
func Decode(encoded string) (Config, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Config{}, fmt.Errorf("failed to decode credentials document: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal credentials document: %w", err)
	}

	return cfg, nil
}
