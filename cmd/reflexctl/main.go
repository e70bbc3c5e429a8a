package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"

	"github.com/jeanhaley32/reflexctl/internal/command"
	"github.com/jeanhaley32/reflexctl/internal/config"
	"github.com/jeanhaley32/reflexctl/internal/console"
	"github.com/jeanhaley32/reflexctl/internal/constants"
	"github.com/jeanhaley32/reflexctl/internal/export"
	"github.com/jeanhaley32/reflexctl/internal/manifest"
	"github.com/jeanhaley32/reflexctl/internal/platform"
	"github.com/jeanhaley32/reflexctl/internal/prereq"
	"github.com/jeanhaley32/reflexctl/internal/process"
	"github.com/jeanhaley32/reflexctl/internal/run"
	"github.com/jeanhaley32/reflexctl/internal/state"
)

var version = "0.1.0"

var log = logging.Logger("cmd")

var (
	cfgFile  string
	logLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "reflexctl",
		Short:         "Build, run and export full-stack web apps",
		Long:          "Drives the frontend toolchain and backend server of a project: dev and prod runs, static exports and deployment archives.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "project config file (defaults to rxconfig.* in the current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "loglevel", "", "log level: debug, info, warning, error or critical")

	rootCmd.AddCommand(
		newInitCmd(),
		newRunCmd(),
		newExportCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		console.New(os.Stderr).Error("Error: %s", err)
		os.Exit(1)
	}
}

// project is what every command needs: the working directory and its
// resolved configuration.
type project struct {
	root string
	cfg  *config.Config
	out  *console.Console
}

func loadProject(cmd *cobra.Command) (*project, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	// Override notices are emitted while the config resolves, before its own
	// level is known.
	bootLevel := config.LogLevelInfo
	if logLevel != "" {
		if bootLevel, err = config.ParseLogLevel(logLevel); err != nil {
			return nil, err
		}
	}
	if err := initLogging(bootLevel); err != nil {
		return nil, err
	}

	var cfg *config.Config
	if cfgFile == "" {
		cfg, err = config.Get(false)
	} else {
		cfg, err = config.NewStore(config.NewFileLoader(root, cfgFile), config.OSEnviron).Get(false)
	}
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.LogLevel = bootLevel
	}
	if err := initLogging(cfg.LogLevel); err != nil {
		return nil, err
	}
	log.Debugw("configuration loaded", "source", cfg.Source(), "app", cfg.AppName)

	return &project{root: root, cfg: cfg, out: console.New(cmd.OutOrStdout())}, nil
}

func initLogging(level config.LogLevel) error {
	name := string(level)
	switch level {
	case config.LogLevelWarning:
		name = "warn"
	case config.LogLevelCritical:
		name = "error"
	}
	ll, err := logging.LevelFromString(name)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logging.SetAllLoggers(ll)
	return nil
}

// toolchain locates the frontend toolchain and returns a builder that uses it.
// A missing package manager is left for validation to report.
func (p *project) toolchain() (*prereq.Checker, *command.Builder) {
	checker := prereq.New(p.cfg)
	opts := []command.Option{command.WithRoot(p.root)}
	if pm, err := checker.PackageManager(); err == nil {
		opts = append(opts, command.WithPackageManager(pm))
	}
	return checker, command.New(p.cfg, opts...)
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the project build directory",
		Long:  "Create the frontend build directory and record a project hash. An existing hash is kept unless --force is given.",
		RunE:  runInit,
	}

	cmd.Flags().Bool("force", false, "Regenerate the project hash")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return fmt.Errorf("invalid force flag: %w", err)
	}

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	if err := p.cfg.RequireAppName(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(p.root, constants.WebDir), constants.DirPermissions); err != nil {
		return fmt.Errorf("failed to create %s: %w", constants.WebDir, err)
	}
	hash, err := manifest.SetProjectHash(filepath.Join(p.root, constants.ReflexJSON), force)
	if err != nil {
		return err
	}

	p.out.Success("Initialized %s (project hash %s)", p.cfg.AppName, hash)
	return nil
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the app",
		Long:  "Start the frontend and backend servers. In prod mode the frontend is exported first.",
		RunE:  runRun,
	}

	cmd.Flags().String("env", string(command.ModeDev), "Environment to run in: dev or prod")
	cmd.Flags().Bool("frontend-only", false, "Only run the frontend")
	cmd.Flags().Bool("backend-only", false, "Only run the backend")
	cmd.Flags().Int("frontend-port", 0, "Frontend port (defaults to frontend_port)")
	cmd.Flags().Int("backend-port", 0, "Backend port (defaults to backend_port)")
	cmd.Flags().String("backend-host", "", "Backend bind host (defaults to backend_host)")
	cmd.MarkFlagsMutuallyExclusive("frontend-only", "backend-only")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	env, err := cmd.Flags().GetString("env")
	if err != nil {
		return fmt.Errorf("invalid env flag: %w", err)
	}
	mode, err := command.ParseMode(env)
	if err != nil {
		return err
	}
	frontendOnly, _ := cmd.Flags().GetBool("frontend-only")
	backendOnly, _ := cmd.Flags().GetBool("backend-only")
	frontendPort, _ := cmd.Flags().GetInt("frontend-port")
	backendPort, _ := cmd.Flags().GetInt("backend-port")
	backendHost, _ := cmd.Flags().GetString("backend-host")

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	if err := p.cfg.RequireAppName(); err != nil {
		return err
	}

	ctx := cmd.Context()
	checker, builder := p.toolchain()
	runner := process.NewExecRunner()

	for _, line := range checker.SystemInfo(ctx) {
		log.Debug(line)
	}

	opts := run.AppOptions{
		Mode:         mode,
		Frontend:     !backendOnly,
		Backend:      !frontendOnly,
		FrontendPort: frontendPort,
		BackendPort:  backendPort,
		BackendHost:  backendHost,
		LogLevel:     p.cfg.LogLevel,
	}

	// Validate once, before setup spawns the package manager.
	if opts.Frontend {
		if err := checker.ValidateFrontend(ctx); err != nil {
			return err
		}
		pipeline := export.New(p.cfg, builder, runner, export.WithRoot(p.root), export.WithConsole(p.out))
		if err := pipeline.SetupFrontend(ctx, !p.cfg.TelemetryEnabled); err != nil {
			return err
		}
		if mode == command.ModeProd {
			if _, err := pipeline.Export(ctx, export.Options{Frontend: true, DeployURL: p.cfg.DeployURL}); err != nil {
				return err
			}
		}
	}

	orchestrator := run.New(p.cfg, builder, runner,
		run.WithRoot(p.root),
		run.WithConsole(p.out),
	)
	err = orchestrator.RunApp(ctx, opts)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		p.out.Print("Shutting down")
		return nil
	}
	return err
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the app for deployment",
		Long:  "Build the static frontend and optionally package the frontend and backend into zip archives.",
		RunE:  runExport,
	}

	cmd.Flags().Bool("frontend", true, "Export the frontend")
	cmd.Flags().Bool("backend", true, "Export the backend")
	cmd.Flags().Bool("zip", false, "Package the export into zip archives")
	cmd.Flags().String("deploy-url", "", "URL the app is deployed at, used for the sitemap (defaults to deploy_url)")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	frontend, _ := cmd.Flags().GetBool("frontend")
	backend, _ := cmd.Flags().GetBool("backend")
	zip, _ := cmd.Flags().GetBool("zip")
	deployURL, _ := cmd.Flags().GetString("deploy-url")

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	if err := p.cfg.RequireAppName(); err != nil {
		return err
	}
	if !cmd.Flags().Changed("deploy-url") {
		deployURL = p.cfg.DeployURL
	}

	ctx := cmd.Context()
	checker, builder := p.toolchain()
	pipeline := export.New(p.cfg, builder, process.NewExecRunner(), export.WithRoot(p.root), export.WithConsole(p.out))

	if frontend {
		if err := checker.ValidateFrontend(ctx); err != nil {
			return err
		}
		if err := pipeline.SetupFrontend(ctx, !p.cfg.TelemetryEnabled); err != nil {
			return err
		}
	}

	p.out.Rule("Exporting")
	res, err := pipeline.Export(ctx, export.Options{
		Frontend:  frontend,
		Backend:   backend,
		Zip:       zip,
		DeployURL: deployURL,
	})
	if res != nil {
		for _, archive := range res.Archives {
			p.out.Success("Exported %s", archive)
		}
	}
	if err != nil {
		return err
	}

	if frontend {
		p.out.Success("Static output written to %s", filepath.Join(p.root, constants.WebStaticDir))
	}
	return nil
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show project status",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}

	checker, _ := p.toolchain()
	st := state.NewDetector(p.root, p.cfg, checker).Detect(cmd.Context())

	p.out.Rule("Project Status")

	if st.ConfigFound {
		p.out.Print("Config:      %s (app %q)", st.ConfigPath, st.AppName)
	} else {
		p.out.Print("Config:      not found")
	}

	if st.Initialized() {
		p.out.Print("Initialized: Yes (hash %s)", st.ProjectHash)
	} else {
		p.out.Print("Initialized: No")
	}

	if st.EnvJSONExists {
		p.out.Print("Endpoints:   %s", config.EndpointPing.URL(p.cfg))
	} else {
		p.out.Print("Endpoints:   not written")
	}

	if st.AssetsExist {
		p.out.Print("Assets:      %s", filepath.Join(st.Root, constants.AppAssetsDir))
	} else {
		p.out.Print("Assets:      none")
	}

	if st.StaticOutputExists {
		p.out.Print("Export:      %s", filepath.Join(st.Root, constants.WebStaticDir))
	} else {
		p.out.Print("Export:      none")
	}

	for _, archive := range []string{st.FrontendArchive, st.BackendArchive} {
		if archive != "" {
			p.out.Print("Archive:     %s", archive)
		}
	}

	if st.ToolchainErr != nil {
		p.out.Warn("\nWarning: %s", st.ToolchainErr)
	}
	if !st.ConfigFound {
		p.out.Warn("\nWarning: no %s file in %s", constants.ConfigModule, st.Root)
	}

	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reflexctl version %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Platform: %s\n", platform.Detect())
		},
	}
}
