// Package manifest maintains the JSON and JavaScript files the generated
// frontend project reads at build and run time.
package manifest

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	logging "github.com/ipfs/go-log/v2"

	"github.com/jeanhaley32/reflexctl/internal/config"
	"github.com/jeanhaley32/reflexctl/internal/constants"
	"github.com/jeanhaley32/reflexctl/internal/embedded"
)

var log = logging.Logger("manifest")

// ProjectHashKey is the key under which the project hash is stored.
const ProjectHashKey = "project_hash"

// ReadJSONFile reads a JSON object from path. A missing or empty file yields
// an empty object. Numbers are kept as json.Number.
func ReadJSONFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	obj := map[string]any{}
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return obj, nil
}

// UpdateJSONFile merges update into the JSON object stored at path, creating
// the file and its directory when missing.
func UpdateJSONFile(path string, update map[string]any) error {
	obj, err := ReadJSONFile(path)
	if err != nil {
		return err
	}
	for k, v := range update {
		obj[k] = v
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, bytes.TrimRight(buf.Bytes(), "\n"), constants.FilePermissions); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// SetEnvJSON writes the backend endpoint URLs the frontend connects to.
func SetEnvJSON(path string, cfg *config.Config) error {
	return UpdateJSONFile(path, map[string]any{
		"uploadUrl": config.EndpointUpload.URL(cfg),
		"eventUrl":  config.EndpointEvent.URL(cfg),
		"pingUrl":   config.EndpointPing.URL(cfg),
	})
}

// SetProjectHash stores a random 128-bit project hash. An existing hash is
// kept unless force is set.
func SetProjectHash(path string, force bool) (string, error) {
	if !force {
		obj, err := ReadJSONFile(path)
		if err != nil {
			return "", err
		}
		if existing, ok := obj[ProjectHashKey]; ok {
			return fmt.Sprint(existing), nil
		}
	}

	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return "", fmt.Errorf("failed to generate project hash: %w", err)
	}
	hash := n.String()
	log.Debugf("Setting project hash to %s.", hash)

	// Written as a number literal to match the existing manifest format.
	if err := UpdateJSONFile(path, map[string]any{ProjectHashKey: json.Number(hash)}); err != nil {
		return "", err
	}
	return hash, nil
}

// WriteSitemapConfig renders the sitemap configuration for deployURL.
func WriteSitemapConfig(path, deployURL string) error {
	obj, err := json.Marshal(struct {
		SiteURL           string `json:"siteUrl"`
		GenerateRobotsTxt bool   `json:"generateRobotsTxt"`
	}{deployURL, true})
	if err != nil {
		return fmt.Errorf("failed to encode sitemap config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FilePermissions)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := embedded.RenderSitemapConfig(f, string(obj)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
