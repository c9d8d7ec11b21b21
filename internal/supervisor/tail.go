package supervisor

import (
	"bytes"
	"os"
	"time"
)

// tailPollInterval matches spec §4.H's 250ms poll cadence.
const tailPollInterval = 250 * time.Millisecond

// TailLog polls path for growth and invokes onLine for each complete line
// (newline-terminated) appended since the last poll. It handles truncation
// and rotation (file size shrinks ⇒ restart from offset 0) and buffers an
// unterminated trailing line across polls rather than emitting it early. It
// returns when stop is closed, or after emitting one final "log removed"
// sentinel line if the file disappears while isDead reports the process as
// already dead.
func TailLog(path string, onLine func(line string), stop <-chan struct{}, isDead func() bool) {
	var (
		offset  int64
		partial bytes.Buffer
	)

	ticker := time.NewTicker(tailPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				if os.IsNotExist(err) && isDead != nil && isDead() {
					onLine("log removed")
					return
				}
				continue
			}

			if info.Size() < offset {
				offset = 0
				partial.Reset()
			}
			if info.Size() == offset {
				continue
			}

			chunk, newOffset, readErr := readFrom(path, offset)
			if readErr != nil {
				continue
			}
			offset = newOffset

			partial.Write(chunk)
			data := partial.Bytes()
			for {
				idx := bytes.IndexByte(data, '\n')
				if idx < 0 {
					break
				}
				onLine(string(bytes.TrimRight(data[:idx], "\r")))
				data = data[idx+1:]
			}
			remaining := append([]byte(nil), data...)
			partial.Reset()
			partial.Write(remaining)
		}
	}
}

func readFrom(path string, offset int64) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, offset, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, 0); err != nil {
		return nil, offset, err
	}

	var buf bytes.Buffer
	n, err := buf.ReadFrom(f)
	if err != nil {
		return nil, offset, err
	}
	return buf.Bytes(), offset + n, nil
}
