package handlers

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/imamik/lbprov/internal/provisioning"
	"github.com/imamik/lbprov/internal/resource"
)

var (
	colorGreen = lipgloss.Color("#22c55e")
	colorRed   = lipgloss.Color("#ef4444")
	colorBlue  = lipgloss.Color("#3b82f6")
	colorDim   = lipgloss.Color("#6b7280")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	okStyle     = lipgloss.NewStyle().Foreground(colorGreen)
	failedStyle = lipgloss.NewStyle().Foreground(colorRed)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	checkMark = "[OK]"
	crossMark = "[!!]"
	pending   = "[  ]"
)

// isTerminal reports whether w is an interactive terminal.
var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// printer renders plans and results, styling them only on a terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, styled: isTerminal(w)}
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *printer) plan(plan *provisioning.Plan) {
	fmt.Fprintln(p.w, p.render(titleStyle, fmt.Sprintf("Plan %s (%d steps)", plan.Name(), plan.Len())))

	deps := map[int][]string{}
	steps := plan.Steps()
	for _, e := range plan.Edges() {
		from := steps[e.From].Spec
		label := string(from.Kind())
		if e.Field != "" {
			label = e.Field + "=" + label
		}
		deps[e.To] = append(deps[e.To], label)
	}

	for i, s := range steps {
		line := fmt.Sprintf("%2d. %-18s %s", i+1, s.Spec.Kind(), s.Spec.Name())
		if s.Amend {
			line += " (amend)"
		}
		fmt.Fprintln(p.w, line)
		if d := deps[i]; len(d) > 0 {
			fmt.Fprintln(p.w, p.render(dimStyle, "      uses "+strings.Join(d, ", ")))
		}
	}
	for _, w := range plan.Warnings() {
		fmt.Fprintln(p.w, p.render(failedStyle, "warning: "+w.Error()))
	}
}

func (p *printer) summary(plan *provisioning.Plan, report *provisioning.Report, runErr error) {
	handles := report.Handles
	failedStep := -1
	var stepErr *provisioning.StepError
	if errors.As(runErr, &stepErr) {
		failedStep = stepErr.Step
	}

	fmt.Fprintln(p.w, p.render(titleStyle, "Load balancer "+plan.Name()))
	seen := map[resource.Kind]bool{}
	for i, s := range plan.Steps() {
		kind := s.Spec.Kind()
		if seen[kind] {
			continue
		}
		seen[kind] = true

		mark, style, detail := pending, dimStyle, ""
		if h, ok := handles[kind]; ok {
			mark, style, detail = checkMark, okStyle, h.Ref
		} else if i == failedStep {
			mark, style = crossMark, failedStyle
		}
		fmt.Fprintf(p.w, "%s %-18s %s %s\n", p.render(style, mark), kind, s.Spec.Name(), p.render(dimStyle, detail))
	}

	for _, w := range report.Warnings {
		fmt.Fprintln(p.w, p.render(failedStyle, fmt.Sprintf("warning: %s %s: [%s] %s", w.Kind, w.Name, w.Code, w.Message)))
	}

	if runErr != nil {
		fmt.Fprintln(p.w, p.render(failedStyle, "Failed: "+runErr.Error()))
		return
	}
	fmt.Fprintln(p.w, p.render(okStyle, "All resources are in place."))
}
