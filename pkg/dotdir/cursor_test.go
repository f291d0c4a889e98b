package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kb/pkg/dotdir"
)

var _ = Describe("dotdir.Manager cursors", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())
		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadCursor", func() {
		It("returns nil when no cursor exists", func() {
			c, err := m.LoadCursor("facts.jsonl", tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(BeNil())
		})

		It("returns error for invalid JSON", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "ingest.json"), []byte("not json"), 0o600)).To(Succeed())

			c, err := m.LoadCursor("facts.jsonl", tmpDir)
			Expect(err).To(HaveOccurred())
			Expect(c).To(BeNil())
		})
	})

	Describe("SaveCursor", func() {
		It("persists a cursor and loads it back", func() {
			err := m.SaveCursor("facts.jsonl", &dotdir.Cursor{Offset: 120, Lines: 3}, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = os.Stat(filepath.Join(tmpDir, "ingest.json"))
			Expect(err).NotTo(HaveOccurred())

			c, err := m.LoadCursor("facts.jsonl", tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c).NotTo(BeNil())
			Expect(c.Offset).To(Equal(int64(120)))
			Expect(c.Lines).To(Equal(int64(3)))
			Expect(c.UpdatedAt.IsZero()).To(BeFalse())
		})

		It("keeps cursors for different sources apart", func() {
			Expect(m.SaveCursor("a.jsonl", &dotdir.Cursor{Offset: 1}, tmpDir)).To(Succeed())
			Expect(m.SaveCursor("b.jsonl", &dotdir.Cursor{Offset: 2}, tmpDir)).To(Succeed())

			a, err := m.LoadCursor("a.jsonl", tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Offset).To(Equal(int64(1)))

			b, err := m.LoadCursor("b.jsonl", tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Offset).To(Equal(int64(2)))
		})

		It("rejects a nil cursor", func() {
			Expect(m.SaveCursor("facts.jsonl", nil, tmpDir)).To(MatchError(ContainSubstring("nil cursor")))
		})
	})

	Describe("ClearCursor", func() {
		It("removes a saved cursor", func() {
			Expect(m.SaveCursor("facts.jsonl", &dotdir.Cursor{Offset: 9}, tmpDir)).To(Succeed())
			Expect(m.ClearCursor("facts.jsonl", tmpDir)).To(Succeed())

			c, err := m.LoadCursor("facts.jsonl", tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(BeNil())
		})

		It("is a no-op when nothing was saved", func() {
			Expect(m.ClearCursor("facts.jsonl", tmpDir)).To(Succeed())
		})
	})
})
