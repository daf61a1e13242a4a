package cmd

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"libsmce-go/board"
	"libsmce-go/sketch"
	"libsmce-go/types"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProfilesCommand(t *testing.T) {
	out, err := execute(t, "profiles")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"FQBN", "arduino:avr:uno", "smce:sim:host"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "profiles", "arduino:avr:nano")
	if err != nil || !strings.Contains(out, `"fqbn": "arduino:avr:nano"`) {
		t.Fatalf("err=%v out=%s", err, out)
	}
	if _, err := execute(t, "profiles", "no:such:board"); err == nil {
		t.Fatal("unknown board accepted")
	}
}

func TestCheckReportsEmptyResources(t *testing.T) {
	out, err := execute(t, "check", "-r", t.TempDir())
	if err == nil {
		t.Fatal("empty resource dir passed the check")
	}
	if !strings.Contains(out, "resdir_empty") {
		t.Fatalf("out = %q", out)
	}
}

func TestConsoleEchoesThroughUart(t *testing.T) {
	echo := sketch.Loop(nil, func(dev sketch.Device) bool {
		buf := make([]byte, 64)
		if n := dev.UartRead(0, buf); n > 0 {
			dev.UartWrite(0, bytes.ToUpper(buf[:n]))
		}
		dev.Delay(time.Millisecond)
		return true
	})
	sk := sketch.New("echo.ino", types.SketchConfig{FQBN: "smce:sim:host"})
	sk.Bind(echo)

	bd := board.New()
	cfg := types.BoardConfig{UartChannels: []types.UartChannel{types.DefaultUartChannel()}}
	if err := bd.Launch(cfg, sk); err != nil {
		t.Fatal(err)
	}

	in, feed := io.Pipe()
	var out, errw syncBuffer
	done := make(chan int, 1)
	go func() { done <- console(context.Background(), bd, in, &out, &errw) }()

	io.WriteString(feed, "hello\n")
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), `arduino: "HELLO"`) {
		if time.Now().After(deadline) {
			t.Fatalf("no echo, out = %q", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
	io.WriteString(feed, quitLine+"\n")
	feed.Close()

	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("exit code = %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop")
	}
	if bd.Status() != types.StatusExited {
		t.Fatalf("status = %s", bd.Status())
	}
}
