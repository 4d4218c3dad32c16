package shell

import (
	"bufio"
	"io"
)

type LogFunc func(line string)

// PipeTo reads r line by line and hands every line to lf until r is exhausted.
// After a scan error the rest of r is discarded so the writer never blocks.
func PipeTo(r io.Reader, lf LogFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lf(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}
