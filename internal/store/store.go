// Package store keeps k6 scripts on disk, one file per script, under
// <root>/<environment>/<application>/<id>.js.
package store

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const scriptExt = ".js"

var (
	// ErrNotFound is returned for scripts that do not exist. It matches
	// os.ErrNotExist with errors.Is.
	ErrNotFound = errors.WithMessage(os.ErrNotExist, "script not found")

	// ErrInvalidName is returned when a name cannot be used as a path component.
	ErrInvalidName = errors.New("invalid script name")

	componentPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)
	whitespace       = regexp.MustCompile(`\s+`)
	wordStart        = regexp.MustCompile(`\b\w`)
)

// Script describes a stored script.
type Script struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Filename    string `json:"filename" yaml:"filename"`
	Path        string `json:"path" yaml:"path"`
	Environment string `json:"environment" yaml:"environment"`
	Application string `json:"application" yaml:"application"`
	FullID      string `json:"fullId" yaml:"fullId"`
	Content     string `json:"content,omitempty" yaml:"content,omitempty"`
}

// Filter narrows List. Application is ignored without Environment.
type Filter struct {
	Environment string
	Application string
}

// FS is a directory-backed script store.
type FS struct {
	root         string
	environments []string
	applications []string
}

// New returns a store rooted at root that knows the given environments and
// applications.
func New(root string, environments, applications []string) *FS {
	return &FS{root: root, environments: environments, applications: applications}
}

// Root returns the store's base directory.
func (s *FS) Root() string { return s.root }

// Environments returns the configured environments.
func (s *FS) Environments() []string { return s.environments }

// Applications returns the configured applications.
func (s *FS) Applications() []string { return s.applications }

// Init creates the directory of every environment/application pair.
func (s *FS) Init() error {
	for _, env := range s.environments {
		for _, app := range s.applications {
			dir := filepath.Join(s.root, env, app)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.Wrapf(err, "failed to create %s", dir)
			}
		}
	}
	return nil
}

// Get returns the content of a script.
func (s *FS) Get(environment, application, id string) (string, error) {
	script, err := s.Lookup(environment, application, id)
	if err != nil {
		return "", err
	}
	return script.Content, nil
}

// Lookup returns a script with its content.
func (s *FS) Lookup(environment, application, id string) (*Script, error) {
	if !validComponents(environment, application, id) {
		return nil, errors.Wrapf(ErrNotFound, "%s/%s/%s", environment, application, id)
	}

	script := s.describe(environment, application, id+scriptExt, "")
	data, err := os.ReadFile(script.Path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotFound, "%s/%s/%s", environment, application, id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", script.Path)
	}

	script.Content = string(data)
	return &script, nil
}

// List returns the scripts matching f, sorted by display name. Display names
// are prefixed with the application when filtering by environment only, and
// with environment and application when unfiltered.
func (s *FS) List(f Filter) ([]Script, error) {
	out := []Script{}

	switch {
	case f.Environment != "" && f.Application != "":
		scripts, err := s.listDir(f.Environment, f.Application, "")
		if err != nil {
			return nil, err
		}
		out = append(out, scripts...)

	case f.Environment != "":
		for _, app := range s.applications {
			scripts, err := s.listDir(f.Environment, app, strings.ToUpper(app)+" - ")
			if err != nil {
				return nil, err
			}
			out = append(out, scripts...)
		}

	default:
		for _, env := range s.environments {
			for _, app := range s.applications {
				prefix := strings.ToUpper(env) + " " + strings.ToUpper(app) + " - "
				scripts, err := s.listDir(env, app, prefix)
				if err != nil {
					return nil, err
				}
				out = append(out, scripts...)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *FS) listDir(environment, application, prefix string) ([]Script, error) {
	if !validComponents(environment, application) {
		return nil, nil
	}

	entries, err := os.ReadDir(filepath.Join(s.root, environment, application))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s/%s", environment, application)
	}

	var scripts []Script
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), scriptExt) {
			continue
		}
		scripts = append(scripts, s.describe(environment, application, entry.Name(), prefix))
	}
	return scripts, nil
}

// Put writes content under the slug of name and returns the stored script.
func (s *FS) Put(name, content, environment, application string) (*Script, error) {
	id := Slug(name)
	if !validComponents(environment, application, id) {
		return nil, errors.Wrapf(ErrInvalidName, "%s/%s/%s", environment, application, id)
	}

	script := s.describe(environment, application, id+scriptExt, "")
	if err := os.MkdirAll(filepath.Dir(script.Path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create script directory")
	}
	if err := os.WriteFile(script.Path, []byte(content), 0o644); err != nil {
		return nil, errors.Wrapf(err, "failed to write %s", script.Path)
	}

	return &script, nil
}

// Delete removes a script.
func (s *FS) Delete(environment, application, id string) error {
	if !validComponents(environment, application, id) {
		return errors.Wrapf(ErrNotFound, "%s/%s/%s", environment, application, id)
	}

	path := filepath.Join(s.root, environment, application, id+scriptExt)
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return errors.Wrapf(ErrNotFound, "%s/%s/%s", environment, application, id)
	}
	return errors.Wrapf(err, "failed to delete %s", path)
}

func (s *FS) describe(environment, application, filename, prefix string) Script {
	id := strings.TrimSuffix(filename, scriptExt)
	return Script{
		ID:          id,
		Name:        prefix + DisplayName(id),
		Filename:    filename,
		Path:        filepath.Join(s.root, environment, application, filename),
		Environment: environment,
		Application: application,
		FullID:      environment + "-" + application + "-" + id,
	}
}

// Slug turns a script name into its id: lower case, whitespace runs
// replaced by a dash.
func Slug(name string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// DisplayName turns an id into a title: "ab-stage-plp-test" becomes
// "Ab Stage Plp Test".
func DisplayName(id string) string {
	return wordStart.ReplaceAllStringFunc(strings.ReplaceAll(id, "-", " "), strings.ToUpper)
}

func validComponents(parts ...string) bool {
	for _, p := range parts {
		if !componentPattern.MatchString(p) || strings.Contains(p, "..") {
			return false
		}
	}
	return true
}
