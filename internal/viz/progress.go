package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/decayfit/internal/mcmc"
)

type StepMsg struct {
	Step       int
	Total      int
	Acceptance float64
}

type doneMsg struct{ err error }

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/10, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// ProgressModel shows sampling progress and the running acceptance fraction.
type ProgressModel struct {
	title      string
	step       int
	total      int
	acceptance []float64
	frame      int
	start      time.Time
	done       bool
	canceled   bool
	err        error
}

func NewProgressModel(title string, total int) ProgressModel {
	return ProgressModel{title: title, total: total, start: time.Now()}
}

func (m ProgressModel) Init() tea.Cmd {
	return tick()
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.canceled = true
			return m, tea.Quit
		}
	case StepMsg:
		m.step = msg.Step
		m.total = msg.Total
		m.acceptance = append(m.acceptance, msg.Acceptance)
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		return m, tick()
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m ProgressModel) View() string {
	var b strings.Builder

	frac := 0.0
	if m.total > 0 {
		frac = float64(m.step) / float64(m.total)
	}

	status := Spinner(m.frame)
	if m.done {
		status = "✓"
	}
	b.WriteString(Title.Render(status+" "+m.title) + "\n\n")
	b.WriteString(ProgressBar(frac, 40) + fmt.Sprintf(" %d/%d\n", m.step, m.total))

	acc := 0.0
	if n := len(m.acceptance); n > 0 {
		acc = m.acceptance[n-1]
	}
	b.WriteString(Metric("acceptance", fmt.Sprintf("%.3f", acc)) + " " + Subtle.Render(Sparkline(m.acceptance, 40)) + "\n")
	b.WriteString(Metric("elapsed", time.Since(m.start).Round(100*time.Millisecond).String()) + "\n")

	if !m.done {
		b.WriteString(Subtle.Render("\nq to cancel") + "\n")
	}
	return b.String()
}

// Canceled reports whether the user quit before the work finished.
func (m ProgressModel) Canceled() bool {
	return m.canceled
}

// programObserver forwards sampler steps to a running program.
type programObserver struct {
	p     *tea.Program
	every int
}

func (o *programObserver) OnStep(step, total int, acceptance float64) {
	if step%o.every == 0 || step == total {
		o.p.Send(StepMsg{Step: step, Total: total, Acceptance: acceptance})
	}
}

// RunWithProgress runs work while a progress view consumes its observer
// callbacks. Quitting the view cancels the context passed to work.
func RunWithProgress(ctx context.Context, title string, total int, work func(context.Context, mcmc.Observer) error, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewProgressModel(title, total), opts...)
	every := total / 200
	if every < 1 {
		every = 1
	}

	errc := make(chan error, 1)
	go func() {
		err := work(ctx, &programObserver{p: p, every: every})
		p.Send(doneMsg{err: err})
		errc <- err
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		<-errc
		return err
	}
	if m, ok := final.(ProgressModel); ok && m.Canceled() {
		cancel()
	}
	return <-errc
}
