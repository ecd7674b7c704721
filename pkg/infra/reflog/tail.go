package reflog

import (
	"bytes"
	"os"

	"github.com/m-mizutani/goerr/v2"
)

const tailChunkSize = 4096

// readLastLine returns the final non-empty line of a file, reading backwards
// from the end so the file's history is never scanned.
func readLastLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open reference log", goerr.V("path", path))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", goerr.Wrap(err, "failed to stat reference log", goerr.V("path", path))
	}
	size := info.Size()
	if size == 0 {
		return "", nil
	}

	chunk := int64(tailChunkSize)
	for {
		if chunk > size {
			chunk = size
		}
		buf := make([]byte, chunk)
		if _, err := f.ReadAt(buf, size-chunk); err != nil {
			return "", goerr.Wrap(err, "failed to read reference log", goerr.V("path", path))
		}

		trimmed := bytes.TrimRight(buf, "\r\n")
		if i := bytes.LastIndexByte(trimmed, '\n'); i >= 0 {
			return string(trimmed[i+1:]), nil
		}
		if chunk == size {
			return string(trimmed), nil
		}
		chunk *= 2
	}
}
