package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mclbus/internal/global"
	"mclbus/internal/logctx"
	"mclbus/pkg/message"
	"mclbus/pkg/replay"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Opens a single dump file. Records with elapsed time outside [minTime, maxTime] are skipped; maxTime <= 0 is unlimited.
func NewReader(ctx context.Context, filePath string, minTime, maxTime float64) (reader *Reader, err error) {
	info, err := os.Stat(filePath)
	if err != nil {
		err = fmt.Errorf("failed to open dump file: %w", err)
		return
	}
	if info.IsDir() {
		err = fmt.Errorf("'%s' is a directory", filePath)
		return
	}

	reader, err = newReader(ctx, []string{filePath}, minTime, maxTime)
	return
}

// Opens every regular file in a directory, merged by record time
func NewDirectoryReader(ctx context.Context, dirPath string, minTime, maxTime float64) (reader *Reader, err error) {
	dirEntries, err := os.ReadDir(dirPath)
	if err != nil {
		err = fmt.Errorf("failed to list dump directory: %w", err)
		return
	}

	var paths []string
	for _, dirEntry := range dirEntries {
		if !dirEntry.Type().IsRegular() || strings.HasPrefix(dirEntry.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(dirPath, dirEntry.Name()))
	}
	if len(paths) == 0 {
		err = fmt.Errorf("%w in '%s'", ErrNoFiles, dirPath)
		return
	}
	sort.Strings(paths)

	reader, err = newReader(ctx, paths, minTime, maxTime)
	return
}

// Opens a file or directory reader depending on what path is
func Open(ctx context.Context, path string, minTime, maxTime float64) (reader *Reader, err error) {
	info, err := os.Stat(path)
	if err != nil {
		err = fmt.Errorf("failed to open dump source: %w", err)
		return
	}
	if info.IsDir() {
		reader, err = NewDirectoryReader(ctx, path, minTime, maxTime)
	} else {
		reader, err = NewReader(ctx, path, minTime, maxTime)
	}
	return
}

func newReader(ctx context.Context, paths []string, minTime, maxTime float64) (reader *Reader, err error) {
	if minTime < 0 {
		err = fmt.Errorf("minimum time must not be negative, got %v", minTime)
		return
	}
	if maxTime > 0 && maxTime < minTime {
		err = fmt.Errorf("maximum time %v is before minimum time %v", maxTime, minTime)
		return
	}

	namespace := append(logctx.GetTagList(ctx), global.NSoFile)
	reader = &Reader{
		Namespace: namespace,
		ctx:       logctx.OverwriteCtxTag(ctx, namespace),
		paths:     paths,
		minTime:   minTime,
		maxTime:   maxTime,
		Metrics:   &ReaderMetrics{},
	}

	err = reader.open()
	if err != nil {
		reader = nil
	}
	return
}

func (reader *Reader) open() (err error) {
	reader.streams = make([]*stream, 0, len(reader.paths))
	for _, path := range reader.paths {
		var file *os.File
		file, err = os.Open(path)
		if err != nil {
			reader.closeStreams()
			err = fmt.Errorf("failed to open dump file: %w", err)
			return
		}
		reader.streams = append(reader.streams, &stream{
			path:    path,
			file:    file,
			decoder: msgpack.NewDecoder(bufio.NewReader(file)),
		})
	}
	reader.hasOrigin = false
	reader.origin = 0
	reader.finished = false
	return
}

func (reader *Reader) closeStreams() (err error) {
	for _, src := range reader.streams {
		if src.file == nil {
			continue
		}
		closeErr := src.file.Close()
		if closeErr != nil && err == nil {
			err = closeErr
		}
		src.file = nil
	}
	reader.streams = nil
	return
}

// Files in read order
func (reader *Reader) Paths() (paths []string) {
	paths = append(paths, reader.paths...)
	return
}

// Fills the stream head. Truncated tails count as end of file.
func (src *stream) fill() (err error) {
	if src.done || src.head != nil {
		return
	}

	var entry Entry
	err = src.decoder.Decode(&entry)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
		src.done = true
		return
	}
	if err != nil {
		src.done = true
		err = fmt.Errorf("%w: '%s': %w", ErrCorrupt, src.path, err)
		return
	}
	src.head = &entry
	return
}

// Next raw entry in time order with its elapsed time; io.EOF when done or past maxTime
func (reader *Reader) ReadEntry() (entry Entry, elapsed float64, err error) {
	reader.mutex.Lock()
	defer reader.mutex.Unlock()

	for {
		if reader.finished {
			err = io.EOF
			return
		}

		var next *stream
		for _, src := range reader.streams {
			err = src.fill()
			if err != nil {
				return
			}
			if src.head == nil {
				continue
			}
			// Ties go to the earlier file
			if next == nil || src.head.Time < next.head.Time {
				next = src
			}
		}
		if next == nil {
			reader.finished = true
			continue
		}

		entry = *next.head
		next.head = nil
		reader.Metrics.EntriesRead.Add(1)

		if !reader.hasOrigin {
			reader.origin = entry.Time
			reader.hasOrigin = true
		}
		elapsed = entry.Time - reader.origin

		if elapsed < reader.minTime {
			reader.Metrics.OutOfRange.Add(1)
			continue
		}
		if reader.maxTime > 0 && elapsed > reader.maxTime {
			// Stream is time ordered, nothing later can be in range
			reader.Metrics.OutOfRange.Add(1)
			reader.finished = true
			continue
		}
		return
	}
}

// Next decoded record. Entries whose type is not registered or fails to decode are skipped.
func (reader *Reader) Read() (record replay.Record, err error) {
	for {
		var entry Entry
		var elapsed float64
		entry, elapsed, err = reader.ReadEntry()
		if err != nil {
			return
		}

		var msg *message.Message
		msg, err = message.NewFromEncoded(entry.Name, entry.Payload)
		if err != nil {
			reader.Metrics.Skipped.Add(1)
			logctx.LogEvent(reader.ctx, global.VerbosityStandard, global.WarnLog,
				"Skipped '%s' entry at %.6fs: %v\n", entry.Name, elapsed, err)
			err = nil
			continue
		}

		record = replay.Record{
			Message:     msg,
			ElapsedTime: elapsed,
		}
		if entry.Topic != nil {
			record.Topic = *entry.Topic
		}
		reader.Metrics.Decoded.Add(1)
		return
	}
}

// Reopens all files from the start
func (reader *Reader) Rewind() (err error) {
	reader.mutex.Lock()
	defer reader.mutex.Unlock()

	err = reader.closeStreams()
	if err != nil {
		logctx.LogEvent(reader.ctx, global.VerbosityStandard, global.WarnLog,
			"Failed closing dump file during rewind: %v\n", err)
	}
	err = reader.open()
	return
}

// Gracefully stops module
func (reader *Reader) Shutdown() (err error) {
	if reader == nil {
		return
	}

	reader.mutex.Lock()
	defer reader.mutex.Unlock()

	err = reader.closeStreams()
	reader.finished = true
	return
}

var (
	_ replay.Source   = (*Reader)(nil)
	_ replay.Rewinder = (*Reader)(nil)
)
