package buffer

import (
	"fmt"

	"holefill/logger"
	"holefill/text"
	"holefill/types"

	"github.com/neovim/go-client/nvim"
)

// NvimSource is a snapshot of the editor's current buffer and cursor. It is
// refreshed with Sync and read by the engine through text.Source.
type NvimSource struct {
	client *nvim.Nvim

	id    nvim.Buffer
	path  string
	lines []string
	row   int // 1-indexed, as reported by nvim
	col   int // 0-indexed byte column
}

// New creates a source bound to an nvim connection
func New(client *nvim.Nvim) *NvimSource {
	return &NvimSource{client: client}
}

// Sync reads the current buffer, its name and the window cursor in one round trip
func (s *NvimSource) Sync() error {
	defer logger.Trace("buffer.Sync")()
	if s.client == nil {
		return fmt.Errorf("nvim client not set")
	}

	batch := s.client.NewBatch()

	var (
		buf    nvim.Buffer
		path   string
		lines  [][]byte
		cursor [2]int
	)
	batch.CurrentBuffer(&buf)
	batch.BufferName(nvim.Buffer(0), &path)
	batch.BufferLines(nvim.Buffer(0), 0, -1, false, &lines)
	batch.WindowCursor(nvim.Window(0), &cursor)

	if err := batch.Execute(); err != nil {
		return fmt.Errorf("sync buffer: %w", err)
	}

	s.update(buf, path, lines, cursor)
	return nil
}

func (s *NvimSource) update(buf nvim.Buffer, path string, lines [][]byte, cursor [2]int) {
	s.id = buf
	s.path = path
	s.lines = make([]string, len(lines))
	for i, l := range lines {
		s.lines[i] = string(l)
	}
	s.row, s.col = cursor[0], cursor[1]
}

// ID is the nvim handle of the synced buffer
func (s *NvimSource) ID() int { return int(s.id) }

func (s *NvimSource) Path() string { return s.path }

func (s *NvimSource) LineCount() int { return len(s.lines) }

func (s *NvimSource) LineAt(line int) string {
	if line < 0 || line >= len(s.lines) {
		return ""
	}
	return s.lines[line]
}

func (s *NvimSource) TextRange(r types.Range) string {
	return text.RangeText(s, r)
}

// Cursor converts nvim's (1-based row, byte col) into a 0-based location
func (s *NvimSource) Cursor() types.CursorLocation {
	return types.CursorLocation{Line: max(s.row-1, 0), Character: s.col}
}

var _ text.Source = (*NvimSource)(nil)
