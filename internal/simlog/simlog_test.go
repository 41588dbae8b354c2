package simlog_test

import (
	"strings"
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/umbra-sim/umbra/internal/simlog"
)

func TestBitflags(t *testing.T) {
	f := &simlog.BitflagFormatter{
		Choices: []simlog.BitflagChoice{
			{
				Mask: 0x3,
				Values: map[int]string{
					syscall.PROT_NONE: "PROT_NONE",
					syscall.PROT_READ: "PROT_READ",
					syscall.PROT_WRITE: "PROT_WRITE",
				},
			},
		},
		Flags: []simlog.BitflagValue{
			{
				Value: syscall.MAP_ANON,
				Name:  "MAP_ANON",
			},
			{
				Value: syscall.MAP_FIXED,
				Name:  "MAP_FIXED",
			},
		},
	}

	testCases := []struct {
		value    int
		expected string
	}{
		{
			value:    syscall.PROT_READ | syscall.MAP_ANON,
			expected: "PROT_READ|MAP_ANON",
		},
		{
			value:    3 | syscall.MAP_FIXED,
			expected: "3|MAP_FIXED",
		},
		{
			value:    syscall.PROT_READ | 0x4000000,
			expected: "PROT_READ|67108864",
		},
	}

	for _, testCase := range testCases {
		got := f.Format(testCase.value)
		if got != testCase.expected {
			t.Errorf("format %d: got %s, expected %s", testCase.value, got, testCase.expected)
		}
	}
}

func TestStack(t *testing.T) {
	attr := simlog.Stack(1, 0)
	if attr.Key != "stackframes" {
		t.Errorf("got attr key %q, expected stackframes", attr.Key)
	}
	frames, ok := attr.Value.Any().([]simlog.Stackframe)
	if !ok || len(frames) == 0 {
		t.Fatalf("got %v, expected captured stackframes", attr.Value)
	}
	if !strings.Contains(frames[0].Function, "TestStack") {
		t.Errorf("first frame is %s, expected the caller", frames[0].Function)
	}
}

func TestParseLog(t *testing.T) {
	logs := []byte(`{"msg": "read", "level": "INFO", "host": "host-1", "thread": 3, "syscall": "read"}
not json
{"msg": "write", "level": "WARN", "host": "host-2"}`)

	got := simlog.ParseLog(logs)
	want := []*simlog.Log{
		{Index: 0, Msg: "read", Level: 0, Host: "host-1", Thread: 3, Syscall: "read"},
		{Index: 1, Msg: "write", Level: 4, Host: "host-2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parsed logs mismatch (-want +got):\n%s", diff)
	}
}
