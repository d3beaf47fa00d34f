package templates

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/hupe1980/promptmesh/core"
)

//go:embed defaults/*.txt
var defaultFS embed.FS

// Ext is the file extension of template files.
const Ext = ".txt"

// ErrInvalidName is returned for template names that cannot map to a file.
var ErrInvalidName = errors.New("invalid template name")

// EmbeddedStore serves templates from an fs.FS.
type EmbeddedStore struct {
	fsys fs.FS
}

var _ core.TemplateStore = (*EmbeddedStore)(nil)

// Defaults returns the built-in template set.
func Defaults() *EmbeddedStore {
	sub, err := fs.Sub(defaultFS, "defaults")
	if err != nil {
		panic(err)
	}

	return &EmbeddedStore{fsys: sub}
}

// NewEmbeddedStore serves templates from the root of fsys.
func NewEmbeddedStore(fsys fs.FS) *EmbeddedStore {
	return &EmbeddedStore{fsys: fsys}
}

// Load implements core.TemplateStore. The model id is ignored.
func (s *EmbeddedStore) Load(name, _ string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	b, err := fs.ReadFile(s.fsys, name+Ext)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", core.ErrTemplateNotFound, name)
		}
		return "", fmt.Errorf("read template %s: %w", name, err)
	}

	return string(b), nil
}

// Names lists the available templates in sorted order.
func (s *EmbeddedStore) Names() ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != Ext {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), Ext))
	}
	sort.Strings(names)

	return names, nil
}

// ValidateName rejects names that are empty or contain path elements.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.Contains(name, "\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}
