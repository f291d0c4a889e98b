package libsql_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kb/pkg/storage"
	"github.com/papercomputeco/kb/pkg/storage/libsql"
	"github.com/papercomputeco/kb/pkg/storage/storagetest"
)

var _ = storagetest.DescribeDriver("libsql.Driver", func() storage.Driver {
	// Each spec gets its own database file.
	driver, err := libsql.NewDriver(context.Background(), libsql.Config{
		DSN:        filepath.Join(GinkgoT().TempDir(), "kb.db"),
		Dimensions: storagetest.Dimensions,
	}, nil)
	Expect(err).NotTo(HaveOccurred())
	return driver
})

var _ = Describe("NewDriver", func() {
	It("requires a path", func() {
		_, err := libsql.NewDriver(context.Background(), libsql.Config{Dimensions: 3}, nil)
		Expect(err).To(MatchError(ContainSubstring("database path is required")))
	})

	It("requires dimensions", func() {
		_, err := libsql.NewDriver(context.Background(), libsql.Config{DSN: ":memory:"}, nil)
		Expect(err).To(MatchError(ContainSubstring("dimensions cannot be 0")))
	})
})
