package desktop

import (
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

const cpuHistoryLen = 10

// SysinfoMsg is one CPU and memory sample.
type SysinfoMsg struct {
	CPU float64
	RAM float64
	Err error
}

// SysinfoCmd samples CPU and memory usage after delay.
func SysinfoCmd(delay time.Duration) tea.Cmd {
	sample := func() tea.Msg {
		var msg SysinfoMsg
		pct, err := cpu.Percent(0, false)
		if err != nil {
			msg.Err = err
		} else if len(pct) > 0 {
			msg.CPU = pct[0]
		}
		vm, err := mem.VirtualMemory()
		if err != nil {
			msg.Err = err
		} else {
			msg.RAM = vm.UsedPercent
		}
		return msg
	}
	if delay <= 0 {
		return sample
	}
	return tea.Tick(delay, func(time.Time) tea.Msg { return sample() })
}

type sysinfo struct {
	cpu    []float64
	ram    float64
	failed bool
}

func (s *sysinfo) record(msg SysinfoMsg) {
	if msg.Err != nil {
		if !s.failed {
			logger.Debug("sysinfo unavailable", "err", msg.Err)
		}
		s.failed = true
		return
	}
	s.failed = false
	if len(s.cpu) >= cpuHistoryLen {
		s.cpu = s.cpu[1:]
	}
	s.cpu = append(s.cpu, clampPercent(msg.CPU))
	s.ram = clampPercent(msg.RAM)
}

func clampPercent(v float64) float64 {
	return min(max(v, 0), 100)
}

var graphBars = []rune("▁▂▃▄▅▆▇█")

// cpuGraph renders the CPU history as a fixed-width bar graph followed by the
// latest reading.
func (s *sysinfo) cpuGraph() string {
	current := 0.0
	if len(s.cpu) > 0 {
		current = s.cpu[len(s.cpu)-1]
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", cpuHistoryLen-len(s.cpu)))
	for _, usage := range s.cpu {
		sb.WriteRune(graphBars[min(int(usage/12.5), len(graphBars)-1)])
	}
	return fmt.Sprintf("CPU:%s %3.0f%%", sb.String(), current)
}

func (s *sysinfo) ramLabel() string {
	return fmt.Sprintf("RAM:%3.0f%%", s.ram)
}
