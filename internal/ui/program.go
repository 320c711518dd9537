package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TransferMsg reports how much of a dump region has arrived.
type TransferMsg struct {
	Index int    // 0-based region index
	Name  string // Region name, if known
	Done  uint64
	Total uint64
}

// TransferDoneMsg ends a transfer display.
type TransferDoneMsg struct {
	Err error
}

// TransferModel is a Bubble Tea model drawing a byte-transfer bar for a
// running dump receive.
type TransferModel struct {
	label    string
	regions  int
	current  TransferMsg
	finished []TransferMsg
	err      error
	quitting bool
	bar      progress.Model
	width    int
}

// NewTransferModel creates a model for a receive of regions regions
// (0 when the count is not known up front).
func NewTransferModel(label string, regions int) TransferModel {
	width := GetTerminalWidth()
	return TransferModel{
		label:   label,
		regions: regions,
		current: TransferMsg{Index: -1},
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth(width))),
		width:   width,
	}
}

func barWidth(width int) int {
	w := width - 30
	if w < 20 {
		return 20
	}
	if w > 50 {
		return 50
	}
	return w
}

// Init implements tea.Model
func (m TransferModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m TransferModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TransferMsg:
		if m.current.Index >= 0 && msg.Index != m.current.Index {
			m.finished = append(m.finished, m.current)
		}
		m.current = msg
	case TransferDoneMsg:
		if m.current.Index >= 0 && m.current.Total > 0 && m.current.Done == m.current.Total {
			m.finished = append(m.finished, m.current)
			m.current = TransferMsg{Index: -1}
		}
		m.err = msg.Err
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = barWidth(msg.Width)
	}
	return m, nil
}

// View implements tea.Model
func (m TransferModel) View() string {
	var b strings.Builder
	if m.label != "" {
		b.WriteString(labelStyle.Render(m.label))
		b.WriteString("\n\n")
	}

	for _, r := range m.finished {
		line := fmt.Sprintf("  %s %s", m.regionLabel(r), noteStyle.Render(fmt.Sprintf("(%d bytes)", r.Total)))
		b.WriteString(stepLooks[StepComplete].style.Render(StepMarkerComplete) + line + "\n")
	}

	if m.current.Index >= 0 {
		var pct float64
		if m.current.Total > 0 {
			pct = float64(m.current.Done) / float64(m.current.Total)
		}
		b.WriteString(lipgloss.NewStyle().PaddingLeft(2).Render(
			fmt.Sprintf("%s  %3.0f%%  %s", m.bar.ViewAs(pct), pct*100, m.regionLabel(m.current))))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render("  " + FailureMarker + " " + m.err.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

func (m TransferModel) regionLabel(r TransferMsg) string {
	name := r.Name
	if name == "" {
		name = fmt.Sprintf("region %d", r.Index+1)
	}
	if m.regions > 0 {
		return fmt.Sprintf("[%d/%d] %s", r.Index+1, m.regions, name)
	}
	return name
}

// Transfer runs a TransferModel in the background.
type Transfer struct {
	prog  *tea.Program
	names []string
	done  chan struct{}
}

// StartTransfer starts drawing a transfer display on out. Region names
// are used for the labels; regions beyond names get numbered.
func StartTransfer(out io.Writer, label string, names []string, regions int) *Transfer {
	if out == nil {
		out = os.Stdout
	}
	t := &Transfer{
		prog:  tea.NewProgram(NewTransferModel(label, regions), tea.WithOutput(out), tea.WithInput(nil)),
		names: names,
		done:  make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		_, _ = t.prog.Run()
	}()
	return t
}

// Update reports progress. Its signature matches receiver.Options.Progress.
func (t *Transfer) Update(index int, done, total uint64) {
	var name string
	if index < len(t.names) {
		name = t.names[index]
	}
	t.prog.Send(TransferMsg{Index: index, Name: name, Done: done, Total: total})
}

// Finish stops the display and waits for the final frame.
func (t *Transfer) Finish(err error) {
	t.prog.Send(TransferDoneMsg{Err: err})
	<-t.done
}

// Printer writes UI components to a writer.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Writer returns the underlying writer
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params map[string]string) {
	p.Println(NewHeader(title, command, params).SetWidth(p.width).Render())
	p.Newline()
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details map[string]string) {
	p.Println(NewSuccessResult(title, details).SetWidth(p.width).Render())
}

// PrintWarning prints a warning result box
func (p *Printer) PrintWarning(title string, details map[string]string) {
	p.Println(NewWarningResult(title, details).SetWidth(p.width).Render())
}

// PrintError prints an error result box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.Println(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}

// PrintResult prints a prepared result box.
func (p *Printer) PrintResult(r *Result) {
	p.Println(r.SetWidth(p.width).Render())
}

// PrintTranscript prints device output in a muted box
func (p *Printer) PrintTranscript(output string, maxLines int) {
	p.Println(NewTranscript(output).SetWidth(p.width).SetMaxLines(maxLines).Render())
}

// PrintPleaseWait prints a note for steps that need the user, e.g.
// "Plug in the powered-off phone" with hint "waiting for the boot ROM".
func (p *Printer) PrintPleaseWait(message, hint string) {
	style := lipgloss.NewStyle().Foreground(AccentColor).Bold(true).PaddingLeft(2)

	line := style.Render("⏳ " + message)
	if hint != "" {
		line += " " + noteStyle.Render("("+hint+")")
	}
	line += style.Render("...")

	p.Newline()
	p.Println(line)
	p.Newline()
}
