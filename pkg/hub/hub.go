// Package hub resolves model and tokenizer metadata from a HuggingFace
// style hub, with a local JSON cache so repeated checks stay offline.
package hub

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tunekit/tunekit/pkg/config"
	"github.com/tunekit/tunekit/pkg/session"
)

const (
	ConfigFile    = "config.json"
	TokenizerFile = "tokenizer_config.json"
)

var DebugLog func(string, ...interface{})

type Client struct {
	endpoint string
	cacheDir string
	token    string
	offline  bool
	session  *session.Session
}

func NewClient(sess *session.Session) *Client {
	return NewClientWithCache(sess, config.GetHubCacheDir())
}

// NewClientWithCache is NewClient with an explicit cache location.
func NewClientWithCache(sess *session.Session, cacheDir string) *Client {
	cfg := sess.Config

	return &Client{
		endpoint: strings.TrimRight(cfg.Hub.Endpoint, "/"),
		cacheDir: cacheDir,
		token:    cfg.HubToken(),
		offline:  cfg.Hub.Offline,
		session:  sess,
	}
}

// IsLocalPath reports whether a model reference points at the local
// filesystem rather than a hub repo id.
func IsLocalPath(ref string) bool {
	if strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "./") || strings.HasPrefix(ref, "../") {
		return true
	}
	info, err := os.Stat(ref)
	return err == nil && info.IsDir()
}

// ModelConfig fetches and parses a repo's config.json, from the local
// path, the cache, or the hub in that order.
func (c *Client) ModelConfig(repo string, force bool) (*ModelConfig, error) {
	path, err := c.ensure(repo, ConfigFile, force)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model config: %w", err)
	}

	var mc ModelConfig
	if err := json.Unmarshal(data, &mc); err != nil {
		return nil, fmt.Errorf("failed to parse model config for %s: %w", repo, err)
	}
	return &mc, nil
}

// TokenizerConfig fetches and parses a repo's tokenizer_config.json.
func (c *Client) TokenizerConfig(repo string, force bool) (*TokenizerConfig, error) {
	path, err := c.ensure(repo, TokenizerFile, force)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokenizer config: %w", err)
	}

	var tc TokenizerConfig
	if err := json.Unmarshal(data, &tc); err != nil {
		return nil, fmt.Errorf("failed to parse tokenizer config for %s: %w", repo, err)
	}
	return &tc, nil
}

// Resolve confirms a repo exists on the hub without caring about its
// contents. Used by --check-remote.
func (c *Client) Resolve(repo string) error {
	if IsLocalPath(repo) {
		if _, err := os.Stat(filepath.Join(repo, ConfigFile)); err != nil {
			return fmt.Errorf("local model path %s has no %s", repo, ConfigFile)
		}
		return nil
	}
	if c.offline {
		return fmt.Errorf("hub is configured offline; cannot resolve %s", repo)
	}

	req, err := http.NewRequest(http.MethodHead, c.fileURL(repo, ConfigFile), nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.session.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", repo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to resolve %s: HTTP %d", repo, resp.StatusCode)
	}
	return nil
}

// ensure returns a local path for repo/file, downloading into the cache
// when needed.
func (c *Client) ensure(repo, file string, force bool) (string, error) {
	if IsLocalPath(repo) {
		return filepath.Join(repo, file), nil
	}

	cached := filepath.Join(c.cacheDir, repoDirName(repo), file)
	if !force && fileExists(cached) {
		if DebugLog != nil {
			DebugLog("hub cache hit for %s/%s", repo, file)
		}
		return cached, nil
	}

	if c.offline {
		return "", fmt.Errorf("hub is configured offline and %s/%s is not cached", repo, file)
	}

	if err := c.download(c.fileURL(repo, file), cached); err != nil {
		return "", fmt.Errorf("failed to download %s for %s: %w", file, repo, err)
	}
	return cached, nil
}

func (c *Client) fileURL(repo, file string) string {
	return fmt.Sprintf("%s/%s/resolve/main/%s", c.endpoint, repo, file)
}

func (c *Client) download(url, dest string) error {
	if DebugLog != nil {
		DebugLog("downloading %s", url)
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.session.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

func repoDirName(repo string) string {
	return strings.ReplaceAll(repo, "/", "--")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
