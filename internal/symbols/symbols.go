// apps/go-server/internal/symbols/symbols.go
//
// Card alphabet loading for the game engine.
//
// Sources:
//   1. If a path is given (SYMBOLS_FILE), read one symbol per line from it.
//   2. Otherwise use the embedded default alphabet (six fruit symbols).
//
// Rules:
//   • Blank lines and lines starting with '#' are skipped.
//   • Symbols are trimmed but otherwise kept verbatim (emoji are fine).
//   • Every symbol must be distinct, since each one becomes exactly one pair.

package symbols

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/robalobadob/memory/apps/go-server/assets"
)

var (
	ErrEmpty     = errors.New("symbols: alphabet is empty")
	ErrDuplicate = errors.New("symbols: duplicate symbol")
)

// Load returns the alphabet from path, or the embedded default when path is empty.
func Load(path string) ([]string, error) {
	if path == "" {
		return Default()
	}
	list, err := readSymbolFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := validate(list); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return list, nil
}

// Default returns a fresh copy of the embedded alphabet.
func Default() ([]string, error) {
	list, err := assets.SymbolsList()
	if err != nil {
		return nil, fmt.Errorf("embedded symbols: %w", err)
	}
	if err := validate(list); err != nil {
		return nil, err
	}
	return list, nil
}

func readSymbolFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

func validate(list []string) error {
	if len(list) == 0 {
		return ErrEmpty
	}
	seen := make(map[string]struct{}, len(list))
	for _, s := range list {
		if _, ok := seen[s]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicate, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}
