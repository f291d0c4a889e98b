package servecmder

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kb/pkg/config"
)

func freeAddr() string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	defer ln.Close()
	return ln.Addr().String()
}

var _ = Describe("run", func() {
	It("serves until the context is cancelled and mirrors logs to --log-file", func() {
		dir := GinkgoT().TempDir()
		addr := freeAddr()

		cfg := config.NewDefaultConfig()
		cfg.Storage = config.StorageConfig{Provider: "memory"}
		cfg.Embedding.Provider = "none"
		cfg.API.Listen = addr

		cmder := &serveCommander{
			cfg:           cfg,
			searchTimeout: time.Second,
			logFile:       filepath.Join(dir, "kb.log"),
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- cmder.run(ctx) }()

		Eventually(func() (int, error) {
			resp, err := http.Get("http://" + addr + "/ping")
			if err != nil {
				return 0, err
			}
			defer resp.Body.Close()
			return resp.StatusCode, nil
		}).WithTimeout(5 * time.Second).Should(Equal(http.StatusOK))

		cancel()
		Eventually(done).WithTimeout(5 * time.Second).Should(Receive(BeNil()))

		data, err := os.ReadFile(cmder.logFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"msg":"starting API server"`))
	})
})
