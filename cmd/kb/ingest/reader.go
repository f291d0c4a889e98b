package ingestcmder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/papercomputeco/kb/pkg/ingest"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/utils"
)

// Inserter writes one statement with its chunks.
type Inserter interface {
	InsertStatementWithChunks(ctx context.Context, s statement.Statement) (*ingest.Result, error)
}

// Summary counts the outcome of one pass over a JSONL file.
type Summary struct {
	Lines      int
	Inserted   int
	Duplicates int
	Skipped    int
	Embedded   int

	// Offset is the byte position just past the last consumed line.
	Offset int64
}

// ingestFrom reads JSONL statements from path starting at offset. Only
// newline-terminated lines are consumed unless final is set, so a writer
// still appending a line is picked up on the next pass. Lines that do not
// decode are logged and skipped; a store failure stops the pass with Offset
// at the last consumed line.
func ingestFrom(ctx context.Context, ins Inserter, path string, offset int64, final bool, logger *slog.Logger) (Summary, error) {
	sum := Summary{Offset: offset}

	f, err := os.Open(path)
	if err != nil {
		return sum, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return sum, fmt.Errorf("seeking %s: %w", path, err)
	}

	r := bufio.NewReader(f)
	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		line, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			if len(line) == 0 || !final {
				return sum, nil
			}
		} else if err != nil {
			return sum, fmt.Errorf("reading %s: %w", path, err)
		}

		if perr := sum.process(ctx, ins, line, logger); perr != nil {
			return sum, perr
		}
		sum.Offset += int64(len(line))

		if errors.Is(err, io.EOF) {
			return sum, nil
		}
	}
}

func (s *Summary) process(ctx context.Context, ins Inserter, line []byte, logger *slog.Logger) error {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] == '#' {
		return nil
	}
	s.Lines++

	var st statement.Statement
	if err := json.Unmarshal(trimmed, &st); err != nil {
		s.Skipped++
		logger.Warn("skipping malformed line", "offset", s.Offset, "line", utils.Truncate(string(trimmed), 80), "error", err)
		return nil
	}
	st.ID = 0

	res, err := ins.InsertStatementWithChunks(ctx, st)
	if err != nil {
		if errors.Is(err, statement.ErrMissingField) || errors.Is(err, statement.ErrInvalidTermType) {
			s.Skipped++
			logger.Warn("skipping invalid statement", "offset", s.Offset, "error", err)
			return nil
		}
		return fmt.Errorf("ingesting statement at offset %d: %w", s.Offset, err)
	}

	if res.IsNew {
		s.Inserted++
	} else {
		s.Duplicates++
	}
	s.Embedded += res.Embedded
	return nil
}
