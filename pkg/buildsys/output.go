package buildsys

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ngld/unitbuild/pkg/jobs"
)

func log(ctx context.Context) *zerolog.Logger {
	return jobs.Log(ctx)
}
