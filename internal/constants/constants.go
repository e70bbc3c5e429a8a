package constants

import "os"

// Project layout constants
const (
	// ConfigModule is the base name of the project configuration file (rxconfig.toml, rxconfig.yaml, ...).
	ConfigModule = "rxconfig"

	// WebDir is the directory holding the generated frontend project.
	WebDir = ".web"

	// WebStaticDir is the static output directory produced by an export build.
	WebStaticDir = ".web/_static"

	// WebPublicDir is where project assets are mirrored for the frontend.
	WebPublicDir = ".web/public"

	// AppAssetsDir is the asset source directory in the project root.
	AppAssetsDir = "assets"

	// EnvJSON is the runtime-environment manifest read by the frontend.
	EnvJSON = ".web/env.json"

	// ReflexJSON is the project manifest holding the project hash.
	ReflexJSON = ".web/reflex.json"

	// SitemapConfigFile is the sitemap configuration rendered before a sitemap export.
	SitemapConfigFile = ".web/next-sitemap.config.js"
)

// Archive constants
const (
	// FrontendZip is the archive holding the static frontend output.
	FrontendZip = "frontend.zip"

	// BackendZip is the archive holding the backend application source.
	BackendZip = "backend.zip"

	// TempArchiveSuffix is appended to archive names while they are being written.
	TempArchiveSuffix = ".tmp"
)

// Backend application constants
const (
	// AppVar is the name of the application object in the app module.
	AppVar = "app"

	// APIVar is the name of the ASGI api attribute on the application object.
	APIVar = "api"

	// SkipCompileEnvVar tells the backend process not to recompile the frontend.
	SkipCompileEnvVar = "__REFLEX_SKIP_COMPILE"

	// PortEnvVar is the environment variable the frontend toolchain listens on.
	PortEnvVar = "PORT"
)

// Toolchain constants
const (
	// MinNodeVersion is the minimum supported node version.
	MinNodeVersion = "16.8.0"

	// MinBunVersion is the minimum supported bun version.
	MinBunVersion = "0.7.0"

	// BunDefaultDir is the bun install directory relative to the user home.
	BunDefaultDir = ".bun/bin"

	// ReadyMarker appears in the frontend dev-server output once it listens.
	ReadyMarker = "ready started server on"
)

// File permissions
const (
	// DirPermissions is the default permission mode for directories.
	DirPermissions os.FileMode = 0755

	// FilePermissions is the default permission mode for generated files.
	FilePermissions os.FileMode = 0644
)
