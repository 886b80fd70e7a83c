package tailer

import (
	"context"

	"github.com/atikulmunna/logrelay/internal/ingest"
	"github.com/atikulmunna/logrelay/internal/model"
	"github.com/atikulmunna/logrelay/internal/parser"
)

// Feed parses every line from lines and logs it through logger until lines
// closes or ctx is cancelled. It returns the number of lines forwarded.
func Feed(ctx context.Context, lines <-chan model.RawLine, p parser.Parser, logger *ingest.Logger) int {
	n := 0
	for {
		select {
		case <-ctx.Done():
			return n
		case raw, ok := <-lines:
			if !ok {
				return n
			}
			if raw.Text == "" {
				continue
			}
			logger.Log(p.Parse(raw.Text, logger.Name()))
			n++
		}
	}
}
