package prettylog_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/umbra-sim/umbra/internal/prettylog"
)

func format(input []byte) []byte {
	var buffer bytes.Buffer
	writer := prettylog.NewWriter(&buffer)

	lines := bytes.SplitAfter(input, []byte("\n"))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		writer.Write(line)
	}

	return buffer.Bytes()
}

func TestPrettyLog(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("FORCE_COLOR", "")

	input := []byte(`{"time":"2020-01-01T00:00:00.000000001Z","level":"INFO","msg":"read","host":"host-1","thread":3,"syscall":"read","fd":5}
{"time":"2020-01-01T00:00:01.000000001Z","level":"WARN","msg":"blocked","syscall":"read"}
`)

	expected := "host-1/3   00:00:00.000 INF read fd=5 syscall=read\n" +
		"00:00:01.000 WRN blocked syscall=read\n"

	got := format(input)
	if diff := cmp.Diff(expected, string(got)); diff != "" {
		t.Error(diff)
	}
}

func TestPrettyLogQuotesValues(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("FORCE_COLOR", "")

	input := []byte(`{"time":"2020-01-01T00:00:02.000000001Z","level":"INFO","msg":"write","data":"hello world"}` + "\n")

	got := format(input)
	want := "00:00:02.000 INF write data=\"hello world\"\n"
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Error(diff)
	}
}
