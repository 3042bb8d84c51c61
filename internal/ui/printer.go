// Package ui renders command output for the terminal.
package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/mschirtzinger/lifedeck/internal/cloudsync"
	"github.com/mschirtzinger/lifedeck/internal/schema"
	"github.com/mschirtzinger/lifedeck/internal/store"
)

var weekdays = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Printer writes styled output to w.
type Printer struct {
	w  io.Writer
	st styles
}

// NewPrinter detects the color profile of w from the environment.
func NewPrinter(w io.Writer) *Printer {
	return NewPrinterWithProfile(w, termenv.NewOutput(w).EnvColorProfile())
}

// NewPrinterWithProfile uses a fixed color profile; termenv.Ascii yields
// plain text.
func NewPrinterWithProfile(w io.Writer, profile termenv.Profile) *Printer {
	r := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	return &Printer{w: w, st: newStyles(r)}
}

func (p *Printer) println(s string) {
	fmt.Fprintln(p.w, s)
}

// Success prints a confirmation line.
func (p *Printer) Success(format string, args ...any) {
	p.println(p.st.success.Render("✓ " + fmt.Sprintf(format, args...)))
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, args ...any) {
	p.println(p.st.warn.Render("! " + fmt.Sprintf(format, args...)))
}

// Error prints err.
func (p *Printer) Error(err error) {
	p.println(p.st.err.Render("Error: ") + err.Error())
}

// Tasks prints tasks grouped by planner cell, backlog first.
func (p *Printer) Tasks(tasks []schema.Task) {
	if len(tasks) == 0 {
		p.println(p.st.muted.Render("No tasks."))
		return
	}

	groups := map[string][]schema.Task{}
	var keys []string
	for _, t := range tasks {
		k := cellName(t.Day, t.Period)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], t)
	}
	sort.SliceStable(keys, func(i, j int) bool { return cellRank(groups[keys[i]][0]) < cellRank(groups[keys[j]][0]) })

	for i, k := range keys {
		if i > 0 {
			p.println("")
		}
		p.println(p.st.header.Render(k))
		cell := groups[k]
		sort.SliceStable(cell, func(a, b int) bool { return cell[a].Order < cell[b].Order })
		for _, t := range cell {
			p.println(p.taskLine(t))
		}
	}
}

func (p *Printer) taskLine(t schema.Task) string {
	box := "[ ]"
	switch t.Status {
	case schema.StatusDone:
		box = "[x]"
	case schema.StatusInProgress:
		box = "[~]"
	}
	prio, ok := p.st.priority[t.Priority]
	if !ok {
		prio = p.st.muted
	}
	var b strings.Builder
	b.WriteString("  " + box + " " + prio.Render(t.Priority) + " " + p.st.title.Render(t.Title))
	if t.Date != "" {
		due := t.Date
		if t.Time != "" {
			due += " " + t.Time
		}
		b.WriteString(" " + p.st.muted.Render("due "+due))
	}
	if len(t.Tags) > 0 {
		b.WriteString(" " + p.st.muted.Render("#"+strings.Join(t.Tags, " #")))
	}
	if n := len(t.Subtasks); n > 0 {
		done := 0
		for _, s := range t.Subtasks {
			if s.Done {
				done++
			}
		}
		b.WriteString(" " + p.st.muted.Render(fmt.Sprintf("(%d/%d)", done, n)))
	}
	b.WriteString(" " + p.st.id.Render(t.ID))
	return b.String()
}

func cellName(day *int, period *string) string {
	if day == nil && period == nil {
		return "Backlog"
	}
	var parts []string
	if day != nil && *day >= 0 && *day < len(weekdays) {
		parts = append(parts, weekdays[*day])
	}
	if period != nil {
		parts = append(parts, *period)
	}
	return strings.Join(parts, " ")
}

func cellRank(t schema.Task) int {
	if t.InBacklog() {
		return -1
	}
	rank := 0
	if t.Day != nil {
		rank = (*t.Day + 1) * 10
	}
	if t.Period != nil {
		switch *t.Period {
		case schema.PeriodMorning:
			rank += 1
		case schema.PeriodAfternoon:
			rank += 2
		case schema.PeriodEvening:
			rank += 3
		}
	}
	return rank
}

// Habits prints active habits with their state on date (2006-01-02).
func (p *Printer) Habits(snap *store.Snapshot, date string) {
	var shown int
	for _, h := range snap.Habits {
		if h.Archived {
			continue
		}
		shown++
		mark := p.st.muted.Render("○")
		if e, ok := snap.EntryOn(h.ID, date); ok && e.Completed {
			mark = p.st.success.Render("●")
		}
		total := 0
		for _, e := range snap.EntriesForHabit(h.ID) {
			if e.Completed {
				total++
			}
		}
		p.println(fmt.Sprintf("  %s %s %s %s", mark, p.st.title.Render(h.Name),
			p.st.muted.Render(fmt.Sprintf("%s, %d done", h.Frequency, total)), p.st.id.Render(h.ID)))
	}
	if shown == 0 {
		p.println(p.st.muted.Render("No habits."))
	}
}

// Notes prints notes with their folder path, pinned first.
func (p *Printer) Notes(snap *store.Snapshot, notes []schema.Note) {
	if len(notes) == 0 {
		p.println(p.st.muted.Render("No notes."))
		return
	}
	sorted := append([]schema.Note(nil), notes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Pinned && !sorted[j].Pinned })
	for _, n := range sorted {
		pin := " "
		if n.Pinned {
			pin = p.st.warn.Render("*")
		}
		title := n.Title
		if title == "" {
			title = "(untitled)"
		}
		line := fmt.Sprintf("  %s %s", pin, p.st.title.Render(title))
		if n.FolderID != nil {
			var names []string
			for _, f := range snap.FolderPath(*n.FolderID) {
				names = append(names, f.Name)
			}
			if len(names) > 0 {
				line += " " + p.st.muted.Render(strings.Join(names, "/"))
			}
		}
		p.println(line + " " + p.st.id.Render(n.ID))
	}
}

// Settings prints the preferences.
func (p *Printer) Settings(s schema.Settings) {
	p.field("theme", s.Theme)
	day := fmt.Sprint(s.WeekStart)
	if s.WeekStart >= 0 && s.WeekStart < len(weekdays) {
		day = weekdays[s.WeekStart]
	}
	p.field("week start", day)
}

// Status prints sync state and local store statistics.
func (p *Printer) Status(st cloudsync.Status, stats store.Stats, remoteURL string) {
	var b strings.Builder
	state, ok := p.st.state[string(st.State)]
	if !ok {
		state = p.st.muted
	}
	account := st.Identity
	if account == "" {
		account = "not logged in"
	}
	if remoteURL == "" {
		remoteURL = "not configured"
	}

	lines := [][2]string{
		{"account", account},
		{"remote", remoteURL},
		{"sync", state.Render(string(st.State))},
		{"last sync", formatTime(st.LastSync)},
		{"updated", formatTime(stats.UpdatedAt)},
		{"entities", fmt.Sprintf("%d (%d open tasks)", stats.Total, stats.OpenTasks)},
	}
	for i, l := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.st.label.Render(l[0]) + l[1])
	}
	if r := st.LastReport; r != nil {
		b.WriteString("\n" + p.st.label.Render("last cycle") +
			fmt.Sprintf("%d sent, %d skipped, %d errors", r.Sent(), r.Skipped(), r.Errors()))
		if r.Err != nil {
			b.WriteString("\n" + p.st.label.Render("") + p.st.err.Render(r.Err.Error()))
		}
	}
	p.println(p.st.box.Render(b.String()))
}

// Counts prints per-collection entity counts in a stable order.
func (p *Printer) Counts(counts map[string]int) {
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if counts[n] == 0 {
			continue
		}
		p.field(n, fmt.Sprint(counts[n]))
	}
}

// Report prints one sync cycle.
func (p *Printer) Report(r cloudsync.Report) {
	if r.Err != nil {
		p.Error(r.Err)
		return
	}
	p.Success("synced %d records (%d skipped, %d errors) in %s",
		r.Sent(), r.Skipped(), r.Errors(), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	for _, c := range r.Collections {
		if c.Errors > 0 {
			p.Warn("%s: %d errors: %s", c.Name, c.Errors, c.Err)
		}
	}
}

// Hydration prints the outcome of a login or pull.
func (p *Printer) Hydration(res cloudsync.HydrateResult) {
	switch {
	case res.Err != nil:
		p.Warn("could not restore backup: %v", res.Err)
	case !res.Found:
		p.println(p.st.muted.Render("No cloud backup found."))
	case !res.Applied:
		p.println(p.st.muted.Render("Local data is newer than the cloud backup; kept local data."))
	default:
		p.Success("restored %d entities from backup of %s", res.Entities, formatTime(res.RemoteUpdatedAt))
	}
}

func (p *Printer) field(label, value string) {
	p.println(p.st.label.Render(label) + value)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
