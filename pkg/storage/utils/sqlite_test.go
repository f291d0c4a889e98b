//go:build sqlite_fts5 || fts5

package storageutils_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kb/pkg/logger"
	"github.com/papercomputeco/kb/pkg/storage/sqlite"
	storageutils "github.com/papercomputeco/kb/pkg/storage/utils"
)

var _ = Describe("NewStorageDriver with SQLite", func() {
	It("opens a SQLite store at the given path", func() {
		path := filepath.Join(GinkgoT().TempDir(), "kb.db")

		d, err := storageutils.NewStorageDriver(context.Background(), &storageutils.NewStorageDriverOpts{
			ProviderType: storageutils.ProviderSQLite,
			SQLitePath:   path,
			Dimensions:   3,
			Logger:       logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()
		Expect(d).To(BeAssignableToTypeOf(&sqlite.Driver{}))

		_, err = os.Stat(path)
		Expect(err).NotTo(HaveOccurred())
	})
})
