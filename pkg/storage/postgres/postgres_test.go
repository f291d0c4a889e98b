package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kb/pkg/storage"
	"github.com/papercomputeco/kb/pkg/storage/postgres"
	"github.com/papercomputeco/kb/pkg/storage/storagetest"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("KB_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("KB_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = storagetest.DescribeDriver("postgres.Driver", func() storage.Driver {
	ctx := context.Background()
	driver, err := postgres.NewDriver(ctx, connStr(), storagetest.Dimensions, nil)
	Expect(err).NotTo(HaveOccurred())

	_, err = driver.DB().ExecContext(ctx, "TRUNCATE kb_statements, kb_chunks RESTART IDENTITY CASCADE")
	Expect(err).NotTo(HaveOccurred())
	return driver
})

var _ = Describe("NewDriver", func() {
	It("fails for unreachable servers", func() {
		_, err := postgres.NewDriver(context.Background(),
			"postgres://kb:kb@127.0.0.1:1/kb?sslmode=disable&connect_timeout=1", 3, nil)
		Expect(err).To(MatchError(ContainSubstring("failed to ping database")))
	})

	It("requires dimensions", func() {
		_, err := postgres.NewDriver(context.Background(), "postgres://localhost/kb", 0, nil)
		Expect(err).To(MatchError(ContainSubstring("dimensions cannot be 0")))
	})
})
