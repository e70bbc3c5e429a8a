package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeanhaley32/reflexctl/internal/config"
	"github.com/jeanhaley32/reflexctl/internal/constants"
	"github.com/jeanhaley32/reflexctl/internal/manifest"
)

// Toolchain reports toolchain problems without failing detection.
type Toolchain interface {
	ValidateFrontend(ctx context.Context) error
}

// ProjectState represents the current state of a project directory.
type ProjectState struct {
	Root string

	ConfigFound bool
	ConfigPath  string
	AppName     string

	WebDirExists  bool
	ProjectHash   string
	EnvJSONExists bool
	AssetsExist   bool

	StaticOutputExists bool
	FrontendArchive    string
	BackendArchive     string

	ToolchainErr error
}

// Initialized reports whether init has been run in the project.
func (s *ProjectState) Initialized() bool {
	return s.WebDirExists && s.ProjectHash != ""
}

// Detector checks the state of a project.
type Detector struct {
	root      string
	cfg       *config.Config
	toolchain Toolchain
}

// NewDetector creates a new state detector. toolchain may be nil.
func NewDetector(root string, cfg *config.Config, toolchain Toolchain) *Detector {
	return &Detector{root: root, cfg: cfg, toolchain: toolchain}
}

// Detect checks all aspects of the project state.
func (d *Detector) Detect(ctx context.Context) *ProjectState {
	state := &ProjectState{
		Root:        d.root,
		ConfigFound: d.cfg.Found(),
		ConfigPath:  d.cfg.Source(),
		AppName:     d.cfg.AppName,
	}

	state.WebDirExists = isDir(d.path(constants.WebDir))
	state.AssetsExist = isDir(d.path(constants.AppAssetsDir))
	state.EnvJSONExists = exists(d.path(constants.EnvJSON))
	state.StaticOutputExists = isDir(d.path(constants.WebStaticDir))

	if obj, err := manifest.ReadJSONFile(d.path(constants.ReflexJSON)); err == nil {
		if hash, ok := obj[manifest.ProjectHashKey]; ok {
			state.ProjectHash = fmt.Sprint(hash)
		}
	}

	if exists(d.path(constants.FrontendZip)) {
		state.FrontendArchive = d.path(constants.FrontendZip)
	}
	if exists(d.path(constants.BackendZip)) {
		state.BackendArchive = d.path(constants.BackendZip)
	}

	if d.toolchain != nil {
		state.ToolchainErr = d.toolchain.ValidateFrontend(ctx)
	}

	return state
}

func (d *Detector) path(rel string) string {
	return filepath.Join(d.root, filepath.FromSlash(rel))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
