package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanhaley32/reflexctl/internal/command"
	"github.com/jeanhaley32/reflexctl/internal/config"
	"github.com/jeanhaley32/reflexctl/internal/console"
	"github.com/jeanhaley32/reflexctl/internal/constants"
	"github.com/jeanhaley32/reflexctl/internal/manifest"
	"github.com/jeanhaley32/reflexctl/internal/platform"
	"github.com/jeanhaley32/reflexctl/internal/process"
	"github.com/jeanhaley32/reflexctl/internal/process/processtest"
	"github.com/jeanhaley32/reflexctl/internal/progress"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newPipeline(t *testing.T, root string, runner process.Runner) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.AppName = "app"
	builder := command.New(&cfg,
		command.WithRoot(root),
		command.WithPlatform(platform.Linux),
		command.WithPackageManager("npm"),
	)
	return New(&cfg, builder, runner, WithRoot(root), WithConsole(console.New(&bytes.Buffer{})))
}

// successfulBuild writes static output the way the export script would.
func successfulBuild(root string) func(process.Spec) processtest.Result {
	return func(spec process.Spec) processtest.Result {
		static := filepath.Join(root, constants.WebStaticDir)
		_ = os.MkdirAll(filepath.Join(static, "_next"), 0755)
		_ = os.WriteFile(filepath.Join(static, "index.html"), []byte("<html></html>"), 0644)
		_ = os.WriteFile(filepath.Join(static, "_next", "app.js"), []byte("js"), 0644)
		return processtest.Result{Output: strings.Join(progress.BuildCheckpoints, "\n") + "\n"}
	}
}

func zipNames(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		assert.Equal(t, zip.Deflate, f.Method, f.Name)
		names = append(names, f.Name)
	}
	return names
}

func TestManifest_Exclusions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".hidden", "x.txt"), "x")
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "index.js"), "x")
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, ".secret"), "s")

	files, err := Manifest(root, mapset.NewThreadUnsafeSet("node_modules"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, files)
}

func TestManifest_SortedRelativePaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b", "c.txt"), "c")
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "frontend.zip"), "z")

	files, err := Manifest(root, nil, archiveExcludes())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b/c.txt"}, files)
}

func TestManifest_MissingRoot(t *testing.T) {
	_, err := Manifest(filepath.Join(t.TempDir(), "missing"), nil, nil)
	assert.Error(t, err)
}

func TestManifest_SymlinkArchivedAsTarget(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "a")
	writeFile(t, filepath.Join(outside, "shared.py"), "shared = True\n")
	require.NoError(t, os.Symlink(filepath.Join(outside, "shared.py"), filepath.Join(root, "shared.py")))

	files, err := Manifest(root, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py", "shared.py"}, files)

	target := filepath.Join(t.TempDir(), "backend.zip")
	require.NoError(t, writeArchive(context.Background(), target, root, files, func() {}))

	r, err := zip.OpenReader(target)
	require.NoError(t, err)
	defer r.Close()
	require.Len(t, r.File, 2)
	rc, err := r.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "shared = True\n", string(data))
}

func TestManifest_DanglingSymlinkFails(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "a")
	require.NoError(t, os.Symlink(filepath.Join(root, "gone.py"), filepath.Join(root, "link.py")))

	_, err := Manifest(root, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link.py")
}

func TestCleanStatic_Idempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, constants.WebStaticDir, "index.html"), "old")

	p := newPipeline(t, root, &processtest.Runner{})
	require.NoError(t, p.CleanStatic())
	require.NoError(t, p.CleanStatic())
	assert.NoDirExists(t, filepath.Join(root, constants.WebStaticDir))
}

func TestExport_FrontendWithSitemapAndZip(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, constants.WebStaticDir, "stale.html"), "stale")
	writeFile(t, filepath.Join(root, "app", "app.py"), "app = rx.App()")
	writeFile(t, filepath.Join(root, "app", "__pycache__", "app.pyc"), "bytecode")
	writeFile(t, filepath.Join(root, "assets", "favicon.ico"), "icon")
	writeFile(t, filepath.Join(root, "rxconfig.toml"), `app_name = "app"`)

	runner := &processtest.Runner{Respond: successfulBuild(root)}
	p := newPipeline(t, root, runner)

	res, err := p.Export(context.Background(), Options{
		Frontend:  true,
		Backend:   true,
		Zip:       true,
		DeployURL: "https://example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, StateDone, p.State())
	assert.True(t, res.Sitemap)

	specs := runner.Specs()
	require.Len(t, specs, 1)
	assert.Equal(t, []string{"npm", "run", "export-sitemap"}, specs[0].Argv)
	assert.Equal(t, filepath.Join(root, constants.WebDir), specs[0].Dir)

	sitemap, err := os.ReadFile(filepath.Join(root, constants.SitemapConfigFile))
	require.NoError(t, err)
	assert.Contains(t, string(sitemap), `"siteUrl":"https://example.com"`)

	frontendZip := filepath.Join(root, constants.FrontendZip)
	backendZip := filepath.Join(root, constants.BackendZip)
	assert.Equal(t, []string{frontendZip, backendZip}, res.Archives)

	assert.Equal(t, []string{"_next/app.js", "index.html"}, zipNames(t, frontendZip))
	assert.Equal(t, []string{"app/app.py", "rxconfig.toml"}, zipNames(t, backendZip))

	assert.NoFileExists(t, frontendZip+constants.TempArchiveSuffix)
	assert.NoFileExists(t, backendZip+constants.TempArchiveSuffix)
}

func TestExport_PlainExportWithoutDeployURL(t *testing.T) {
	root := t.TempDir()
	runner := &processtest.Runner{Respond: successfulBuild(root)}

	res, err := newPipeline(t, root, runner).Export(context.Background(), Options{Frontend: true})
	require.NoError(t, err)
	assert.False(t, res.Sitemap)
	assert.Empty(t, res.Archives)
	assert.Equal(t, []string{"npm", "run", "export"}, runner.Specs()[0].Argv)
	assert.NoFileExists(t, filepath.Join(root, constants.SitemapConfigFile))
}

func TestExport_BuildFailureSkipsZip(t *testing.T) {
	root := t.TempDir()
	runner := &processtest.Runner{Respond: func(process.Spec) processtest.Result {
		return processtest.Result{Output: "Linting and checking validity\nType error: boom\n", Code: 1}
	}}
	p := newPipeline(t, root, runner)

	_, err := p.Export(context.Background(), Options{Frontend: true, Backend: true, Zip: true})

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, 1, buildErr.Code)
	assert.Equal(t, []string{"npm", "run", "export"}, buildErr.Command)
	assert.Contains(t, buildErr.Tail, "Type error: boom")
	assert.Equal(t, StateFrontendBuild, p.State())

	assert.NoFileExists(t, filepath.Join(root, constants.FrontendZip))
	assert.NoFileExists(t, filepath.Join(root, constants.BackendZip))
}

func TestExport_SpawnErrorPropagates(t *testing.T) {
	runner := &processtest.Runner{Respond: func(process.Spec) processtest.Result {
		return processtest.Result{SpawnErr: errors.New("executable file not found")}
	}}

	_, err := newPipeline(t, t.TempDir(), runner).Export(context.Background(), Options{Frontend: true})

	var spawnErr *process.SpawnError
	require.ErrorAs(t, err, &spawnErr)
}

func TestExport_BackendOnlyDoesNotBuild(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app", "app.py"), "app")
	runner := &processtest.Runner{}

	res, err := newPipeline(t, root, runner).Export(context.Background(), Options{Backend: true, Zip: true})
	require.NoError(t, err)
	assert.Empty(t, runner.Specs())
	assert.Equal(t, []string{filepath.Join(root, constants.BackendZip)}, res.Archives)
	assert.NoFileExists(t, filepath.Join(root, constants.FrontendZip))
}

func TestExport_MissingStaticOutputFailsFrontendArchiveOnly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app", "app.py"), "app")
	runner := &processtest.Runner{Respond: func(process.Spec) processtest.Result {
		return processtest.Result{Output: "Export successful\n"}
	}}

	res, err := newPipeline(t, root, runner).Export(context.Background(), Options{Frontend: true, Backend: true, Zip: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Frontend archive")
	assert.Equal(t, []string{filepath.Join(root, constants.BackendZip)}, res.Archives)
}

func TestSetupFrontend(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "assets", "logo.png"), "logo")
	runner := &processtest.Runner{}

	require.NoError(t, newPipeline(t, root, runner).SetupFrontend(context.Background(), true))

	assert.FileExists(t, filepath.Join(root, constants.WebPublicDir, "logo.png"))
	env, err := manifest.ReadJSONFile(filepath.Join(root, constants.EnvJSON))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/ping", env["pingUrl"])

	specs := runner.Specs()
	require.Len(t, specs, 1)
	assert.Equal(t, []string{"npm", "run", "next", "telemetry", "disable"}, specs[0].Argv)
}

func TestSetupFrontend_TelemetryKept(t *testing.T) {
	runner := &processtest.Runner{}
	require.NoError(t, newPipeline(t, t.TempDir(), runner).SetupFrontend(context.Background(), false))
	assert.Empty(t, runner.Specs())
}
