//go:build linux

package proctree

import (
	"os"
	"sort"
	"testing"
	"time"
)

func TestParseStat(t *testing.T) {
	// Real /proc stat lines put the command name in parentheses; it may
	// itself contain spaces and parentheses.
	tests := []struct {
		name  string
		line  string
		ppid  int
		ticks uint64
		ok    bool
	}{
		{
			name:  "plain",
			line:  "1234 (sleep) S 1000 1234 1000 0 -1 4194304 100 0 0 0 7 3 0 0 20 0 1 0 12345 1000000 100 18446744073709551615",
			ppid:  1000,
			ticks: 10,
			ok:    true,
		},
		{
			name:  "comm with spaces and parens",
			line:  "42 (tmux: server (1)) S 7 42 42 0 -1 4194368 2000 0 0 0 15 5 0 0 20 0 1 0 999 1000000 50 18446744073709551615",
			ppid:  7,
			ticks: 20,
			ok:    true,
		},
		{
			name: "truncated",
			line: "99 (x) S 1 99",
			ok:   false,
		},
		{
			name: "no comm terminator",
			line: "99 broken line without parens",
			ok:   false,
		},
		{
			name: "empty",
			line: "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ok := parseStat(tt.line)
			if ok != tt.ok {
				t.Fatalf("parseStat ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if st.ppid != tt.ppid {
				t.Errorf("ppid = %d, want %d", st.ppid, tt.ppid)
			}
			if st.ticks != tt.ticks {
				t.Errorf("ticks = %d, want %d", st.ticks, tt.ticks)
			}
		})
	}
}

func TestDescendants(t *testing.T) {
	// Tree: 100 -> {101, 102}, 101 -> {103}, plus an unrelated 200.
	stats := map[int]procStat{
		100: {pid: 100, ppid: 1},
		101: {pid: 101, ppid: 100},
		102: {pid: 102, ppid: 100},
		103: {pid: 103, ppid: 101},
		200: {pid: 200, ppid: 1},
	}

	members := descendants(stats, 100)
	if members[0] != 100 {
		t.Errorf("Expected root first, got %d", members[0])
	}

	sorted := append([]int(nil), members...)
	sort.Ints(sorted)
	want := []int{100, 101, 102, 103}
	if len(sorted) != len(want) {
		t.Fatalf("Expected %v, got %v", want, sorted)
	}
	for i := range want {
		if sorted[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, sorted)
		}
	}
}

func TestDescendants_LeafOnly(t *testing.T) {
	stats := map[int]procStat{
		100: {pid: 100, ppid: 1},
	}
	members := descendants(stats, 100)
	if len(members) != 1 || members[0] != 100 {
		t.Errorf("Expected only the root, got %v", members)
	}
}

func TestTicksToDuration(t *testing.T) {
	if got := ticksToDuration(100); got != time.Second {
		t.Errorf("100 ticks = %v, want 1s", got)
	}
	if got := ticksToDuration(50); got != 500*time.Millisecond {
		t.Errorf("50 ticks = %v, want 500ms", got)
	}
	if got := ticksToDuration(0); got != 0 {
		t.Errorf("0 ticks = %v, want 0", got)
	}
}

func TestSample_OwnProcess(t *testing.T) {
	sampler := NewSampler()
	usage, err := sampler.Sample(os.Getpid())
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	if usage.Processes < 1 {
		t.Errorf("Expected at least 1 process, got %d", usage.Processes)
	}
	if usage.RSSBytes <= 0 {
		t.Errorf("Expected positive RSS, got %d", usage.RSSBytes)
	}
}

func TestSample_VanishedProcess(t *testing.T) {
	sampler := NewSampler()
	// Far above the default kernel pid ceiling.
	if _, err := sampler.Sample(1 << 30); err != ErrVanished {
		t.Errorf("Expected ErrVanished, got %v", err)
	}
}

func TestKillTree_NonexistentPid(t *testing.T) {
	// Killing a vanished tree must be a silent no-op.
	KillTree(1 << 30)
}
