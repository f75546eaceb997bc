package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/oauth2"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
)

const (
	DefaultGitHubAPIURL = "https://api.github.com"
	DefaultBranch       = "main"
	DefaultUserAgent    = "quill-cms"

	mediaJSON  = "application/vnd.github+json"
	mediaRaw   = "application/vnd.github.raw"
	apiVersion = "2022-11-28"
)

// GitHubConfig identifies one repository branch and the credential used to
// reach it.
type GitHubConfig struct {
	APIURL    string
	Owner     string
	Repo      string
	Token     string
	Branch    string
	UserAgent string
	// HTTPClient is the base client wrapped by the bearer token transport.
	HTTPClient *http.Client
}

// GitHub implements Provider on top of the GitHub Contents API.
type GitHub struct {
	client    *http.Client
	base      string
	branch    string
	userAgent string
}

// NewGitHub validates cfg and returns a GitHub provider. Missing owner, repo
// or token is reported as apperr.ErrConfig before any network call.
func NewGitHub(cfg GitHubConfig) (*GitHub, error) {
	if err := validation.ValidateStruct(&cfg,
		validation.Field(&cfg.Owner, validation.Required),
		validation.Field(&cfg.Repo, validation.Required),
		validation.Field(&cfg.Token, validation.Required),
	); err != nil {
		return nil, fmt.Errorf("storage: github %w: %w", apperr.ErrConfig, err)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultGitHubAPIURL
	}
	if cfg.Branch == "" {
		cfg.Branch = DefaultBranch
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	ctx := context.Background()
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.Token,
		TokenType:   "Bearer",
	}))
	if client.Timeout == 0 {
		client.Timeout = 30 * time.Second
	}

	base := fmt.Sprintf("%s/repos/%s/%s/contents",
		strings.TrimRight(cfg.APIURL, "/"), url.PathEscape(cfg.Owner), url.PathEscape(cfg.Repo))

	return &GitHub{
		client:    client,
		base:      base,
		branch:    cfg.Branch,
		userAgent: cfg.UserAgent,
	}, nil
}

type contentsFile struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Size     int64  `json:"size"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	SHA      string `json:"sha"`
}

type putBody struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch"`
}

type deleteBody struct {
	Message string `json:"message"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch"`
}

type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

type hostMessage struct {
	Message string `json:"message"`
}

// List returns the entries of dir on the configured branch.
func (g *GitHub) List(ctx context.Context, dir string) ([]models.Entry, error) {
	resp, err := g.do(ctx, http.MethodGet, dir, mediaJSON, nil, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "list", dir); err != nil {
		return nil, err
	}

	var entries []models.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		// A file path answers with an object rather than an array.
		return nil, fmt.Errorf("storage: list %s: decode listing: %w", dir, err)
	}
	return entries, nil
}

// Read returns the file content and its blob sha.
func (g *GitHub) Read(ctx context.Context, path string) (*models.File, error) {
	resp, err := g.do(ctx, http.MethodGet, path, mediaJSON, nil, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "read", path); err != nil {
		return nil, err
	}

	var cf contentsFile
	if err := json.NewDecoder(resp.Body).Decode(&cf); err != nil {
		return nil, fmt.Errorf("storage: read %s: decode: %w", path, err)
	}
	if cf.Type != "" && cf.Type != models.EntryFile {
		return nil, fmt.Errorf("storage: read %s: not a file (%s)", path, cf.Type)
	}

	// Files above the inline size limit come back without content.
	if cf.Encoding != "base64" || (cf.Content == "" && cf.Size > 0) {
		data, err := g.readRaw(ctx, path)
		if err != nil {
			return nil, err
		}
		return &models.File{Path: path, Content: data, Revision: cf.SHA}, nil
	}

	data, err := base64.StdEncoding.DecodeString(stripNewlines(cf.Content))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: decode base64: %w", path, err)
	}
	return &models.File{Path: path, Content: data, Revision: cf.SHA}, nil
}

func (g *GitHub) readRaw(ctx context.Context, path string) ([]byte, error) {
	resp, err := g.do(ctx, http.MethodGet, path, mediaRaw, nil, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "read", path); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write creates or updates a file with one commit on the configured branch.
func (g *GitHub) Write(ctx context.Context, req WriteRequest) (string, error) {
	body, err := json.Marshal(putBody{
		Message: req.Message,
		Content: base64.StdEncoding.EncodeToString(req.Content),
		SHA:     req.Revision,
		Branch:  g.branch,
	})
	if err != nil {
		return "", fmt.Errorf("storage: write %s: encode: %w", req.Path, err)
	}

	resp, err := g.do(ctx, http.MethodPut, req.Path, mediaJSON, body, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		serr := statusError(resp, "write", req.Path)
		if req.Revision == "" {
			// Creating over an existing path without its sha.
			serr.Err = apperr.ErrAlreadyExists
		} else {
			serr.Err = apperr.ErrConflict
		}
		return "", serr
	}
	if err := checkStatus(resp, "write", req.Path); err != nil {
		return "", err
	}

	var out putResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("storage: write %s: decode: %w", req.Path, err)
	}
	return out.Content.SHA, nil
}

// Delete removes a file with one commit on the configured branch.
func (g *GitHub) Delete(ctx context.Context, path, message, revision string) error {
	body, err := json.Marshal(deleteBody{Message: message, SHA: revision, Branch: g.branch})
	if err != nil {
		return fmt.Errorf("storage: delete %s: encode: %w", path, err)
	}
	resp, err := g.do(ctx, http.MethodDelete, path, mediaJSON, body, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnprocessableEntity {
		serr := statusError(resp, "delete", path)
		serr.Err = apperr.ErrConflict
		return serr
	}
	return checkStatus(resp, "delete", path)
}

func (g *GitHub) do(ctx context.Context, method, path, accept string, body []byte, withRef bool) (*http.Response, error) {
	u := g.base + "/" + escapePath(path)
	if withRef {
		u += "?ref=" + url.QueryEscape(g.branch)
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("storage: build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &apperr.StatusError{Op: strings.ToLower(method), Path: path, Err: err}
	}
	return resp, nil
}

func checkStatus(resp *http.Response, op, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return statusError(resp, op, path)
}

func statusError(resp *http.Response, op, path string) *apperr.StatusError {
	serr := &apperr.StatusError{Op: op, Path: path, Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var hm hostMessage
	if err := json.Unmarshal(data, &hm); err == nil && hm.Message != "" {
		serr.Message = hm.Message
	}
	return serr
}

func escapePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// IsNotFound reports whether err means the path does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
