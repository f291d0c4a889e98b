package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/kb/internal/dagger"
)

// Build and return directory of go binaries
func (k *Kb) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// sqlite and sqlite-vec are cgo, so each platform builds natively
	// in its own container instead of cross compiling.
	platforms := []dagger.Platform{"linux/amd64", "linux/arm64"}

	outputs := dag.Directory()

	for _, platform := range platforms {
		path := string(platform) + "/"

		build := dag.Container(dagger.ContainerOpts{Platform: platform}).
			From("golang:1.25-bookworm").
			WithExec([]string{"apt-get", "update"}).
			WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
			WithEnvVariable("CGO_ENABLED", "1").
			WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod-"+strings.ReplaceAll(path, "/", "-"))).
			WithDirectory("/src", k.Source).
			WithWorkdir("/src").
			WithExec([]string{"go", "build", "-tags", sqliteTags, "-ldflags", ldflags, "-o", path, "./cli/kb"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (k *Kb) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/kb/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/kb/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/kb/pkg/utils.Buildtime=%s'", buildtime),
	}

	return k.Build(ctx, strings.Join(ldflags, " "))
}
