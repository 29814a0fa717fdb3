package task

import "strings"

// Log is an ordered, append-only sequence of immutable chunks addressed by byte offset.
// A task has exactly one writer, so Log does no locking of its own.
type Log struct {
	chunks  []string
	offsets []int64
	size    int64
}

// Append adds a chunk and returns the byte offset it starts at
func (l *Log) Append(chunk string) int64 {
	start := l.size
	l.chunks = append(l.chunks, chunk)
	l.offsets = append(l.offsets, start)
	l.size += int64(len(chunk))
	return start
}

// Size is the total number of bytes in the log
func (l *Log) Size() int64 {
	return l.size
}

// Empty reports whether nothing was appended yet
func (l *Log) Empty() bool {
	return len(l.chunks) == 0
}

// ReadFrom returns the log content starting at offset.
// Offsets past the end return an empty string.
func (l *Log) ReadFrom(offset int64) string {
	if offset < 0 {
		offset = 0
	}
	if offset >= l.size {
		return ""
	}
	var b strings.Builder
	b.Grow(int(l.size - offset))
	for i, chunk := range l.chunks {
		start := l.offsets[i]
		end := start + int64(len(chunk))
		if end <= offset {
			continue
		}
		if start < offset {
			b.WriteString(chunk[offset-start:])
			continue
		}
		b.WriteString(chunk)
	}
	return b.String()
}

// String returns the whole log
func (l *Log) String() string {
	return l.ReadFrom(0)
}

// Lines formats the text appended for a batch of log lines
func Lines(lines []string) string {
	return strings.Join(lines, "\n") + "\n"
}
