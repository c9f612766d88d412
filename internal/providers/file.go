package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtx/internal/auth"
	"github.com/desertthunder/mtx/internal/library"
	"github.com/desertthunder/mtx/internal/shared"
)

const (
	FileName = "file"

	fileBatchLimit = 100
)

// File reads a library from an exported JSON document and writes
// completed transfers back out as JSON. It needs no authentication and
// never talks to the network, so pushes succeed trivially and queries
// echo the item itself.
type File struct {
	importPath string
	exportDir  string
	logger     *log.Logger
}

// NewFile creates a file adapter. importPath is the JSON document to
// load as a library; exportDir is where transfer exports are written.
func NewFile(importPath, exportDir string, logger *log.Logger) *File {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &File{
		importPath: importPath,
		exportDir:  exportDir,
		logger:     shared.WithLogger(logger, "provider", FileName),
	}
}

func (f *File) Name() string { return FileName }

func (f *File) Credential() *auth.Credential { return nil }

func (f *File) Authenticated() bool { return true }

func (f *File) BatchLimit() int { return fileBatchLimit }

// Library parses the import document into groups under a single root.
func (f *File) Library(ctx context.Context) (*library.Group, error) {
	if f.importPath == "" {
		return nil, fmt.Errorf("%w: import path", shared.ErrMissingArgument)
	}
	data, err := os.ReadFile(f.importPath)
	if err != nil {
		return nil, err
	}
	children, err := library.GroupsFromJSON(data)
	if err != nil {
		return nil, err
	}
	return library.NewAll(children, nil), nil
}

// Query matches every item against itself.
func (f *File) Query(ctx context.Context, kind library.Kind, item library.Item) ([]string, error) {
	return []string{item.Name}, nil
}

func (f *File) PushBatch(ctx context.Context, kind library.Kind, containerID string, ids []string) error {
	return nil
}

func (f *File) CreateContainer(ctx context.Context, meta ContainerMeta) (string, error) {
	return meta.Name, nil
}

// WriteTransfers serializes completed transfers into dir. A single
// transfer is named after itself, several share one document.
func WriteTransfers(dir string, transfers []*library.Transfer) (string, error) {
	if len(transfers) == 0 {
		return "", fmt.Errorf("%w: no transfers to export", shared.ErrInvalidInput)
	}

	name := "music_transfer.json"
	var payload any = transfers
	if len(transfers) == 1 {
		name = exportFilename(transfers[0].Name())
		payload = transfers[0]
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func exportFilename(name string) string {
	return "music_transfer_" + strings.ReplaceAll(name, " ", "_") + ".json"
}
