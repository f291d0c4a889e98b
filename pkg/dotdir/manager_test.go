package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kb/pkg/dotdir"
)

// layout builds a scratch tree with a working directory and a home
// directory, optionally seeding .kb in either, and switches into it.
func layout(localKB, homeKB bool) (cwd, home string) {
	root, err := filepath.EvalSymlinks(GinkgoT().TempDir())
	Expect(err).NotTo(HaveOccurred())

	cwd = filepath.Join(root, "work")
	home = filepath.Join(root, "home")
	Expect(os.MkdirAll(cwd, 0o755)).To(Succeed())
	Expect(os.MkdirAll(home, 0o755)).To(Succeed())
	if localKB {
		Expect(os.Mkdir(filepath.Join(cwd, ".kb"), 0o755)).To(Succeed())
	}
	if homeKB {
		Expect(os.Mkdir(filepath.Join(home, ".kb"), 0o755)).To(Succeed())
	}

	prevDir, err := os.Getwd()
	Expect(err).NotTo(HaveOccurred())
	Expect(os.Chdir(cwd)).To(Succeed())
	DeferCleanup(os.Chdir, prevDir)

	prevHome := os.Getenv("HOME")
	Expect(os.Setenv("HOME", home)).To(Succeed())
	DeferCleanup(os.Setenv, "HOME", prevHome)

	return cwd, home
}

var _ = Describe("Manager", func() {
	var m *dotdir.Manager

	BeforeEach(func() {
		m = dotdir.NewManager()
	})

	Describe("Target", func() {
		It("creates a missing override directory", func() {
			cwd, _ := layout(false, false)
			dir := filepath.Join(cwd, "nested", "state")

			got, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(dir))
			Expect(dir).To(BeADirectory())
		})

		It("resolves a relative override against the working directory", func() {
			cwd, _ := layout(true, true)

			got, err := m.Target("custom")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(filepath.Join(cwd, "custom")))
		})

		DescribeTable("search order without an override",
			func(localKB, homeKB bool, want func(cwd, home string) string) {
				cwd, home := layout(localKB, homeKB)

				got, err := m.Target("")
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(want(cwd, home)))
			},
			Entry("prefers the local directory", true, true,
				func(cwd, _ string) string { return filepath.Join(cwd, ".kb") }),
			Entry("falls back to the home directory", false, true,
				func(_, home string) string { return filepath.Join(home, ".kb") }),
			Entry("reports nothing when neither exists", false, false,
				func(_, _ string) string { return "" }),
		)

		It("ignores a .kb file that is not a directory", func() {
			cwd, _ := layout(false, false)
			Expect(os.WriteFile(filepath.Join(cwd, ".kb"), nil, 0o600)).To(Succeed())

			Expect(m.Target("")).To(BeEmpty())
		})
	})

	Describe("Init", func() {
		It("creates ~/.kb when nothing exists", func() {
			_, home := layout(false, false)

			got, err := m.Init("")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(filepath.Join(home, ".kb")))
			Expect(got).To(BeADirectory())
		})

		It("keeps an existing local directory", func() {
			cwd, home := layout(true, false)

			got, err := m.Init("")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(filepath.Join(cwd, ".kb")))
			Expect(filepath.Join(home, ".kb")).NotTo(BeAnExistingFile())
		})
	})
})
