package storageutils_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kb/pkg/logger"
	"github.com/papercomputeco/kb/pkg/storage/inmemory"
	storageutils "github.com/papercomputeco/kb/pkg/storage/utils"
)

var _ = Describe("NewStorageDriver", func() {
	ctx := context.Background()

	It("opens an in-memory store", func() {
		d, err := storageutils.NewStorageDriver(ctx, &storageutils.NewStorageDriverOpts{
			ProviderType: storageutils.ProviderMemory,
			Dimensions:   3,
			Logger:       logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()
		Expect(d).To(BeAssignableToTypeOf(&inmemory.Driver{}))
	})

	It("requires a DSN for postgres", func() {
		_, err := storageutils.NewStorageDriver(ctx, &storageutils.NewStorageDriverOpts{ProviderType: storageutils.ProviderPostgres, Dimensions: 3})
		Expect(err).To(MatchError(ContainSubstring("postgres_dsn")))
	})

	It("requires a path for libsql", func() {
		_, err := storageutils.NewStorageDriver(ctx, &storageutils.NewStorageDriverOpts{ProviderType: storageutils.ProviderLibSQL, Dimensions: 3})
		Expect(err).To(MatchError(ContainSubstring("libsql_path")))
	})

	It("rejects unknown providers", func() {
		_, err := storageutils.NewStorageDriver(ctx, &storageutils.NewStorageDriverOpts{ProviderType: "mongo", Dimensions: 3})
		Expect(err).To(MatchError(ContainSubstring("unsupported storage provider")))
	})
})

var _ = Describe("ResolveSQLitePath", func() {
	var (
		origHome string
		origXDG  string
		origDB   string
		origCwd  string
	)

	BeforeEach(func() {
		origHome = os.Getenv("HOME")
		origXDG = os.Getenv("XDG_DATA_HOME")
		origDB = os.Getenv("KB_DB")
		var err error
		origCwd, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.Setenv("HOME", origHome)).To(Succeed())
		Expect(os.Setenv("XDG_DATA_HOME", origXDG)).To(Succeed())
		Expect(os.Setenv("KB_DB", origDB)).To(Succeed())
		Expect(os.Chdir(origCwd)).To(Succeed())
	})

	It("prefers the override", func() {
		Expect(os.Setenv("KB_DB", "/tmp/env.db")).To(Succeed())

		path, err := storageutils.ResolveSQLitePath("/tmp/flag.db")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/flag.db"))
	})

	It("uses KB_DB when set", func() {
		Expect(os.Setenv("KB_DB", "/tmp/env.db")).To(Succeed())

		path, err := storageutils.ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/env.db"))
	})

	It("falls back to ~/.kb/kb.db and creates the directory", func() {
		homeDir := GinkgoT().TempDir()
		cwd := GinkgoT().TempDir()

		Expect(os.Setenv("HOME", homeDir)).To(Succeed())
		Expect(os.Setenv("XDG_DATA_HOME", "")).To(Succeed())
		Expect(os.Setenv("KB_DB", "")).To(Succeed())
		Expect(os.Chdir(cwd)).To(Succeed())

		path, err := storageutils.ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(homeDir, ".kb", "kb.db")))

		info, err := os.Stat(filepath.Dir(path))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})

	It("finds an existing XDG database first", func() {
		homeDir := GinkgoT().TempDir()
		xdg := GinkgoT().TempDir()
		cwd := GinkgoT().TempDir()

		Expect(os.Setenv("HOME", homeDir)).To(Succeed())
		Expect(os.Setenv("XDG_DATA_HOME", xdg)).To(Succeed())
		Expect(os.Setenv("KB_DB", "")).To(Succeed())
		Expect(os.Chdir(cwd)).To(Succeed())

		dbPath := filepath.Join(xdg, "kb", "kb.db")
		Expect(os.MkdirAll(filepath.Dir(dbPath), 0o755)).To(Succeed())
		Expect(os.WriteFile(dbPath, nil, 0o600)).To(Succeed())

		path, err := storageutils.ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(dbPath))
	})
})
