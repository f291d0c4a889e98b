// kb CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
// It is the main harness for handling nearly all dev operations.
package main

import (
	"context"

	"dagger/kb/internal/dagger"
)

const (
	postgresImage = "pgvector/pgvector:pg17"
	qdrantImage   = "qdrant/qdrant:v1.15.1"
)

// Kb is the main module for the kb CI/CD pipeline
type Kb struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new kb CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", ".kb", "build", "tmp"]
	source *dagger.Directory,
) *Kb {
	return &Kb{
		Source: source,
	}
}

// sqliteTags are the build tags every go command needs: mattn/go-sqlite3
// only compiles FTS5 under sqlite_fts5.
const sqliteTags = "sqlite_fts5"

// goContainer returns a Debian Bookworm-based Go container with gcc,
// libsqlite3-dev, CGO enabled, the sqlite build tags set, and the project
// source mounted.
//
// It is the shared foundation for tests, builds, and linting.
func (k *Kb) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("GOFLAGS", "-tags="+sqliteTags).
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", k.Source)
}

// postgres returns a pgvector-enabled Postgres service for the storage tests.
func (k *Kb) postgres() *dagger.Service {
	return dag.Container().
		From(postgresImage).
		WithEnvVariable("POSTGRES_USER", "kb").
		WithEnvVariable("POSTGRES_PASSWORD", "kb").
		WithEnvVariable("POSTGRES_DB", "kb").
		WithExposedPort(5432).
		AsService()
}

// qdrant returns a Qdrant service for the external vector index tests.
func (k *Kb) qdrant() *dagger.Service {
	return dag.Container().
		From(qdrantImage).
		WithExposedPort(6334).
		AsService()
}

// Test runs the kb unit tests via "go test". Postgres and Qdrant run as
// services so their driver suites are not skipped.
func (k *Kb) Test(ctx context.Context) (string, error) {
	return k.goContainer().
		WithServiceBinding("postgres", k.postgres()).
		WithServiceBinding("qdrant", k.qdrant()).
		WithEnvVariable("KB_TEST_POSTGRES_DSN", "postgres://kb:kb@postgres:5432/kb?sslmode=disable").
		WithEnvVariable("KB_TEST_QDRANT_ADDR", "qdrant:6334").
		WithExec([]string{"go", "test", "-v", "-tags", sqliteTags, "./..."}).
		Stdout(ctx)
}

// CheckLibSQL verifies the binary still builds with the libsql provider,
// which is only wired into the storage factory under the libsql build tag.
func (k *Kb) CheckLibSQL(ctx context.Context) (string, error) {
	return k.goContainer().
		WithExec([]string{"go", "build", "-tags", "libsql," + sqliteTags, "-o", "/tmp/kb", "./cli/kb"}).
		WithExec([]string{"/tmp/kb", "version"}).
		Stdout(ctx)
}
