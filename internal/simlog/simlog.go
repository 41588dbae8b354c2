// Package simlog has helpers for the simulator's structured logs: a parsed
// record type for tooling and tests, a caller-stack attribute, and a
// formatter for rendering syscall flag and status bitsets.
package simlog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"runtime"
	"slices"
	"time"
)

type Stackframe struct {
	File     string `json:"file"`
	Function string `json:"function"`
	Line     int    `json:"line"`
}

// Log is one decoded log record as emitted by the simulator's slog handler.
type Log struct {
	Index int `json:"-"`

	Time        time.Time     `json:"time"`
	Level       slog.Level    `json:"level"`
	Msg         string        `json:"msg"`
	Source      *Stackframe   `json:"source"`
	Stackframes []*Stackframe `json:"stackframes"`
	Host        string        `json:"host"`
	Process     int           `json:"process"`
	Thread      int           `json:"thread"`
	Syscall     string        `json:"syscall"`

	// map[string]any for extra fields
}

func ParseLog(logs []byte) []*Log {
	var out []*Log

	for _, line := range bytes.Split(logs, []byte("\n")) {
		var log Log
		if err := json.Unmarshal(line, &log); err != nil {
			continue
		}
		log.Index = len(out)
		out = append(out, &log)
	}

	return out
}

// Stack captures the caller's stack as a structured attribute, trimmed to
// start at the frame whose PC equals base if base is non-zero.
func Stack(skip int, base uintptr) slog.Attr {
	var stackRaw [256]uintptr
	n := runtime.Callers(skip+1, stackRaw[:])

	stack := stackRaw[:n]
	found := false
	if base == 0 {
		found = true
	} else {
		if idx := slices.Index(stack, base); idx != -1 {
			stack = stack[idx:]
			found = true
		}
	}

	var frames []Stackframe
	if len(stack) > 0 {
		framesIter := runtime.CallersFrames(stack)
		for {
			frame, more := framesIter.Next()
			if !found && frame.PC == base {
				found = true
			}
			if found {
				frames = append(frames, Stackframe{
					Function: frame.Function,
					File:     frame.File,
					Line:     frame.Line,
				})
			}
			if !more {
				break
			}
		}
	}
	return slog.Any("stackframes", frames)
}
