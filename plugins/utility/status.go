package utility

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"relaybot/internal/event"
)

func (p *Plugin) uptime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readyAt.IsZero() {
		return 0
	}
	return time.Since(p.readyAt)
}

func (p *Plugin) statusText() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var b strings.Builder
	b.Grow(512)
	b.WriteString("Bot status\n")
	fmt.Fprintf(&b, "Uptime: %s\n", durRel(p.uptime()))
	fmt.Fprintf(&b, "Goroutines: %d\n", runtime.NumGoroutine())
	fmt.Fprintf(&b, "Heap: %s\n", bytesHuman(m.HeapAlloc))
	writeHost(&b)
	if p.deps.Buttons != nil {
		fmt.Fprintf(&b, "Active buttons: %d\n", len(p.deps.Buttons.All()))
	}
	if p.deps.Waiter != nil {
		fmt.Fprintf(&b, "Pending reaction waits: %d\n", p.deps.Waiter.Pending(event.KindReactionAdd))
	}
	if p.deps.Scheduler != nil {
		tasks := p.deps.Scheduler.Snapshot()
		fmt.Fprintf(&b, "Tasks: %d\n", len(tasks))
		for _, t := range tasks {
			next := "-"
			if !t.Next.IsZero() {
				next = t.Next.Format("2006-01-02 15:04:05 MST")
			}
			fmt.Fprintf(&b, "  %s (%s) next %s\n", t.Name, t.Kind, next)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func durRel(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

func bytesHuman(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// writeHost adds process and host figures. Lines whose probe fails are left out.
func writeHost(b *strings.Builder) {
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfo(); err == nil {
			fmt.Fprintf(b, "RSS: %s\n", bytesHuman(mi.RSS))
		}
	}
	if v, err := mem.VirtualMemory(); err == nil {
		fmt.Fprintf(b, "Host memory: %s / %s (%.0f%%)\n", bytesHuman(v.Used), bytesHuman(v.Total), v.UsedPercent)
	}
	if l, err := load.Avg(); err == nil {
		fmt.Fprintf(b, "Load: %.2f %.2f %.2f\n", l.Load1, l.Load5, l.Load15)
	}
}
