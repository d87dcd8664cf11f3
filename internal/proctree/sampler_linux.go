//go:build linux

package proctree

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/victoralfred/gowritter/safepath"
)

// USER_HZ is fixed at 100 on every architecture Linux supports; /proc
// stat times are expressed in these ticks.
const clockTicksPerSecond = 100

// procSampler walks /proc to account for a whole process tree.
// Per-file reads go through safepath so the sampler cannot be redirected
// outside the proc filesystem.
type procSampler struct {
	procFS   *safepath.SafePath
	procDir  string
	pageSize int64
}

func newPlatformSampler() Sampler {
	s := &procSampler{
		procDir:  "/proc",
		pageSize: int64(os.Getpagesize()),
	}
	if fs, err := safepath.New("/proc"); err == nil {
		s.procFS = fs
	}
	return s
}

// procStat is the subset of /proc/<pid>/stat the sampler needs.
type procStat struct {
	pid   int
	ppid  int
	ticks uint64 // utime + stime
}

// Sample implements Sampler by scanning /proc once and summing usage over
// the subtree rooted at pid.
func (s *procSampler) Sample(pid int) (Usage, error) {
	stats, err := s.scan()
	if err != nil {
		return Usage{}, err
	}
	if _, ok := stats[pid]; !ok {
		return Usage{}, ErrVanished
	}

	var usage Usage
	for _, member := range descendants(stats, pid) {
		st := stats[member]
		usage.Processes++
		usage.CPUTime += ticksToDuration(st.ticks)
		usage.RSSBytes += s.residentBytes(member)
	}
	return usage, nil
}

// scan reads the stat line of every numeric /proc entry. Processes that
// exit mid-scan are skipped; a later sample sees the consistent picture.
func (s *procSampler) scan() (map[int]procStat, error) {
	entries, err := os.ReadDir(s.procDir)
	if err != nil {
		return nil, err
	}

	stats := make(map[int]procStat, len(entries))
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		data, err := s.readProcFile(entry.Name() + "/stat")
		if err != nil {
			continue
		}
		st, ok := parseStat(string(data))
		if !ok {
			continue
		}
		st.pid = pid
		stats[pid] = st
	}
	return stats, nil
}

func (s *procSampler) readProcFile(rel string) ([]byte, error) {
	if s.procFS != nil {
		return s.procFS.ReadFile(rel)
	}
	return os.ReadFile(s.procDir + "/" + rel)
}

// residentBytes reads resident pages from /proc/<pid>/statm.
// A vanished process contributes zero.
func (s *procSampler) residentBytes(pid int) int64 {
	data, err := s.readProcFile(strconv.Itoa(pid) + "/statm")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0
	}
	resident, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return resident * s.pageSize
}

// parseStat extracts ppid and CPU ticks from one /proc/<pid>/stat line.
// The comm field may contain spaces and parentheses, so parsing starts
// after the final ')'.
func parseStat(line string) (procStat, bool) {
	end := strings.LastIndexByte(line, ')')
	if end < 0 || end+2 > len(line) {
		return procStat{}, false
	}
	// Fields after comm, zero-indexed: 0=state 1=ppid ... 11=utime 12=stime.
	fields := strings.Fields(line[end+1:])
	if len(fields) < 13 {
		return procStat{}, false
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return procStat{}, false
	}
	utime, err := strconv.ParseUint(fields[11], 10, 64)
	if err != nil {
		return procStat{}, false
	}
	stime, err := strconv.ParseUint(fields[12], 10, 64)
	if err != nil {
		return procStat{}, false
	}
	return procStat{ppid: ppid, ticks: utime + stime}, true
}

// descendants returns pid and every transitive child present in stats,
// in breadth-first order (root first).
func descendants(stats map[int]procStat, root int) []int {
	children := make(map[int][]int, len(stats))
	for pid, st := range stats {
		children[st.ppid] = append(children[st.ppid], pid)
	}

	members := []int{root}
	for i := 0; i < len(members); i++ {
		members = append(members, children[members[i]]...)
	}
	return members
}

func ticksToDuration(ticks uint64) time.Duration {
	return time.Duration(ticks) * time.Second / clockTicksPerSecond
}
