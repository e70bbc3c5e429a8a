package export

import (
	"context"
	"io"

	"github.com/jeanhaley32/reflexctl/internal/constants"
	"github.com/jeanhaley32/reflexctl/internal/manifest"
	"github.com/jeanhaley32/reflexctl/internal/process"
	"github.com/jeanhaley32/reflexctl/internal/watch"
)

// SetupFrontend prepares the generated frontend project before it is built or
// run: assets are mirrored into the public directory, the endpoint manifest is
// written and, when requested, framework telemetry is switched off.
func (p *Pipeline) SetupFrontend(ctx context.Context, disableTelemetry bool) error {
	if err := watch.New(p.root).Sync(); err != nil {
		return err
	}
	if err := manifest.SetEnvJSON(p.path(constants.EnvJSON), p.cfg); err != nil {
		return err
	}
	if !disableTelemetry {
		return nil
	}
	if err := process.Run(ctx, p.runner, p.builder.DisableTelemetry().Spec(), io.Discard); err != nil {
		log.Warnf("failed to disable telemetry: %s", err)
	}
	return nil
}
