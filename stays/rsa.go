package stays

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// RSA import: the anonymized per-stay format, one stay per line. The
// layout matches the RSS columns except that the administrative id is
// replaced by a single 9-digit sequential index, which serves as both
// admin and bill id here.
const rsaIndexLen = 9

// LoadRSA parses the one-stay-per-line RSA format. Like LoadRSS, field
// errors set ErrorMask bits instead of failing the file.
func LoadRSA(r io.Reader) ([]Stay, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []Stay
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(line) < 3+rsaIndexLen {
			out = append(out, Stay{ErrorMask: ErrTruncatedRecord})
			continue
		}

		// widen the index into the admin id + bill id slots and reuse
		// the RSS column parser
		idx := line[3 : 3+rsaIndexLen]
		s := parseRUMLine(line[0:3] + idx + idx + line[3+rsaIndexLen:])
		out = append(out, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("stays: reading line %d: %w", lineno, err)
	}
	return out, nil
}
