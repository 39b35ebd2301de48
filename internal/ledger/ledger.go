// Package ledger keeps the set of message identifiers that were already
// delivered. The set lives in a text file with one decimal identifier per
// line and only ever grows.
package ledger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
)

type Ledger struct {
	path string
	ids  map[int64]struct{}

	// unterminated is set when the file's last line has no newline, as
	// after a hand edit or an interrupted append.
	unterminated bool
}

// Load reads the ledger file at path. A missing file is an empty ledger.
func Load(path string) (*Ledger, error) {
	l := &Ledger{path: path, ids: make(map[int64]struct{})}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	l.unterminated = len(data) > 0 && data[len(data)-1] != '\n'

	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		id, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse ledger line %d: %w", line, err)
		}
		l.ids[id] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return l, nil
}

func (l *Ledger) Path() string {
	return l.path
}

func (l *Ledger) Contains(id int64) bool {
	_, ok := l.ids[id]
	return ok
}

// Commit appends id to the file and, once the write is synced and closed,
// to the in-memory set. On error the id is left out so the message stays
// eligible for redelivery. An unterminated last line is closed first so the
// new id never merges with it.
func (l *Ledger) Commit(id int64) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger for append: %w", err)
	}
	line := fmt.Sprintf("%d\n", id)
	if l.unterminated {
		line = "\n" + line
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("append ledger id %d: %w", id, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	l.unterminated = false
	l.ids[id] = struct{}{}
	return nil
}

func (l *Ledger) Len() int {
	return len(l.ids)
}

// IDs returns the recorded identifiers in ascending order.
func (l *Ledger) IDs() []int64 {
	ids := make([]int64, 0, len(l.ids))
	for id := range l.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
