package command

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/jeanhaley32/reflexctl/internal/constants"
	"github.com/jeanhaley32/reflexctl/internal/platform"
)

type variantKey struct {
	family platform.Family
	mode   Mode
	role   Role
}

type variant func(b *Builder, req Request) (Command, error)

var variants = map[variantKey]variant{
	{platform.Posix, ModeDev, RoleFrontend}:  frontend("dev"),
	{platform.WinNT, ModeDev, RoleFrontend}:  frontend("dev"),
	{platform.Posix, ModeProd, RoleFrontend}: frontend("prod"),
	{platform.WinNT, ModeProd, RoleFrontend}: frontend("prod"),
	{platform.Posix, ModeDev, RoleBackend}:   backendDev,
	{platform.WinNT, ModeDev, RoleBackend}:   backendDev,
	{platform.Posix, ModeProd, RoleBackend}:  backendProdPrefork,
	{platform.WinNT, ModeProd, RoleBackend}:  backendProdWindows,
}

// frontend runs a package script and passes the listen port through PORT.
// A port on the request takes precedence over the configured one.
func frontend(script string) variant {
	return func(b *Builder, req Request) (Command, error) {
		port := b.cfg.FrontendPort
		if req.Port > 0 {
			port = req.Port
		}
		cmd := b.frontendScript("run", script)
		cmd.Env[constants.PortEnvVar] = strconv.Itoa(port)
		return cmd, nil
	}
}

// backendDev serves the api with hot reload scoped to the app directory.
func backendDev(b *Builder, req Request) (Command, error) {
	if err := b.cfg.RequireAppName(); err != nil {
		return Command{}, err
	}
	return Command{
		Argv: []string{
			"uvicorn", b.cfg.APIModule(),
			"--host", b.host(req),
			"--port", b.backendPort(req),
			"--log-level", logLevel(req),
			"--reload",
			"--reload-dir", b.cfg.AppName,
		},
		Env: map[string]string{},
		Dir: b.root,
	}, nil
}

// backendProdPrefork runs gunicorn with async uvicorn workers.
func backendProdPrefork(b *Builder, req Request) (Command, error) {
	if err := b.cfg.RequireAppName(); err != nil {
		return Command{}, err
	}
	workers := strconv.Itoa(b.workers())
	argv := []string{
		"gunicorn",
		"--worker-class", "uvicorn.workers.UvicornH11Worker",
		"--preload",
		"--timeout", strconv.Itoa(b.cfg.Timeout),
		"--log-level", "critical",
		"--bind", fmt.Sprintf("%s:%s", b.host(req), b.backendPort(req)),
		"--threads", workers,
		b.cfg.AppModule() + "()",
		"--log-level", logLevel(req),
		"--workers", workers,
	}
	return Command{
		Argv: argv,
		Env:  map[string]string{constants.SkipCompileEnvVar: "yes"},
		Dir:  b.root,
	}, nil
}

// backendProdWindows runs uvicorn directly since gunicorn does not support Windows.
func backendProdWindows(b *Builder, req Request) (Command, error) {
	if err := b.cfg.RequireAppName(); err != nil {
		return Command{}, err
	}
	argv := []string{
		"uvicorn",
		"--timeout-keep-alive", strconv.Itoa(b.cfg.Timeout),
		"--host", b.host(req),
		"--port", b.backendPort(req),
		b.cfg.AppModule(),
		"--log-level", logLevel(req),
		"--workers", strconv.Itoa(b.workers()),
	}
	return Command{
		Argv: argv,
		Env:  map[string]string{constants.SkipCompileEnvVar: "yes"},
		Dir:  b.root,
	}, nil
}

// NumWorkers returns the production worker count: 2*cpus+1, with the logical
// CPU count floored at one.
func NumWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		n = runtime.NumCPU()
	}
	return workersFor(n)
}

func workersFor(cpus int) int {
	return max(1, cpus)*2 + 1
}
