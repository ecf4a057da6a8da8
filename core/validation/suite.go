// Package validation runs the preflight checks printed by the verify command:
// configuration, asset files, history storage and the compute devices.
package validation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// StepStatus represents the status of a validation step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

// String returns the string representation of a step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// CheckResult is what a Check reports.
type CheckResult struct {
	Status  StepStatus
	Message string
	Error   error
}

// Pass, Warn, Fail and Skip build CheckResults.
func Pass(format string, args ...any) CheckResult {
	return CheckResult{Status: StepPassed, Message: fmt.Sprintf(format, args...)}
}

func Warn(format string, args ...any) CheckResult {
	return CheckResult{Status: StepWarning, Message: fmt.Sprintf(format, args...)}
}

func Fail(err error) CheckResult {
	return CheckResult{Status: StepFailed, Error: err}
}

func Skip(format string, args ...any) CheckResult {
	return CheckResult{Status: StepSkipped, Message: fmt.Sprintf(format, args...)}
}

// Check is one preflight check.
type Check func(ctx context.Context) CheckResult

// ValidationStep is a completed step.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// SuiteResult represents the complete result of validation suite execution.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

type step struct {
	name     string
	check    Check
	requires bool
}

// Suite runs checks in order and prints progress.
//
//	result := validation.NewSuite("Style Transfer Preflight").
//	    WithOutput(os.Stdout).
//	    Add("Configuration", checkConfig).
//	    AddDependent("Asset Files", checkAssets).
//	    Run(ctx)
type Suite struct {
	title        string
	output       io.Writer
	showProgress bool
	failFast     bool
	steps        []step
}

// NewSuite creates an empty suite that prints to stdout.
func NewSuite(title string) *Suite {
	return &Suite{
		title:        title,
		output:       os.Stdout,
		showProgress: true,
	}
}

// WithOutput sets the output writer for progress messages.
func (s *Suite) WithOutput(w io.Writer) *Suite {
	s.output = w
	return s
}

// WithShowProgress enables or disables progress output.
func (s *Suite) WithShowProgress(show bool) *Suite {
	s.showProgress = show
	return s
}

// WithFailFast stops at the first failed step.
func (s *Suite) WithFailFast(failFast bool) *Suite {
	s.failFast = failFast
	return s
}

// Add appends a check that always runs.
func (s *Suite) Add(name string, check Check) *Suite {
	s.steps = append(s.steps, step{name: name, check: check})
	return s
}

// AddDependent appends a check that is skipped when an earlier step failed.
func (s *Suite) AddDependent(name string, check Check) *Suite {
	s.steps = append(s.steps, step{name: name, check: check, requires: true})
	return s
}

// Run executes the steps.
func (s *Suite) Run(ctx context.Context) SuiteResult {
	start := time.Now()
	if s.showProgress {
		s.printHeader(s.title)
	}

	done := make([]ValidationStep, 0, len(s.steps))
	for _, st := range s.steps {
		var vs ValidationStep
		switch {
		case ctx.Err() != nil:
			vs = ValidationStep{Name: st.name, Status: StepSkipped, Message: "Cancelled"}
			s.printIfShown(vs)
		case st.requires && !allPassed(done):
			vs = ValidationStep{Name: st.name, Status: StepSkipped, Message: "Skipped due to earlier failures"}
			s.printIfShown(vs)
		default:
			vs = s.runStep(ctx, st)
		}
		done = append(done, vs)
		if s.failFast && vs.Status == StepFailed {
			break
		}
	}

	result := buildResult(done, start)
	if s.showProgress {
		s.printSummary(result)
	}
	return result
}

func (s *Suite) runStep(ctx context.Context, st step) ValidationStep {
	if s.showProgress {
		s.printStepStart(st.name)
	}
	startTime := time.Now()
	res := st.check(ctx)
	vs := ValidationStep{
		Name:    st.name,
		Status:  res.Status,
		Message: res.Message,
		Error:   res.Error,
		Latency: time.Since(startTime),
	}
	if vs.Error != nil && vs.Status != StepWarning {
		vs.Status = StepFailed
	}
	if vs.Status == StepPending || vs.Status == StepRunning {
		vs.Status = StepPassed
	}
	if s.showProgress {
		s.printStep(vs)
	}
	return vs
}

func (s *Suite) printIfShown(vs ValidationStep) {
	if s.showProgress {
		s.printStep(vs)
	}
}

func allPassed(steps []ValidationStep) bool {
	for _, st := range steps {
		if st.Status == StepFailed {
			return false
		}
	}
	return true
}

func buildResult(steps []ValidationStep, startTime time.Time) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(startTime),
		Success:    true,
	}
	for _, st := range steps {
		switch st.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.Warnings++
		}
	}
	return result
}

func (s *Suite) printHeader(title string) {
	fmt.Fprintln(s.output)
	color.New(color.FgCyan, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n", title)
	fmt.Fprintln(s.output)
}

// printStepStart prints the step name before execution; printStep rewrites the line.
func (s *Suite) printStepStart(name string) {
	fmt.Fprintf(s.output, "  ◌ %s...", name)
}

func (s *Suite) printStep(st ValidationStep) {
	var icon string
	var clr *color.Color

	switch st.Status {
	case StepPassed:
		icon = "✓"
		clr = color.New(color.FgGreen)
	case StepFailed:
		icon = "✗"
		clr = color.New(color.FgRed)
	case StepWarning:
		icon = "!"
		clr = color.New(color.FgYellow)
	case StepSkipped:
		icon = "○"
		clr = color.New(color.FgHiBlack)
	default:
		icon = "?"
		clr = color.New(color.FgWhite)
	}

	fmt.Fprintf(s.output, "\r")
	clr.Fprintf(s.output, "  %s %s", icon, st.Name)
	if st.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", st.Message)
	}
	fmt.Fprintln(s.output)

	if st.Error != nil && st.Status != StepPassed {
		color.New(color.FgRed).Fprintf(s.output, "    └─ %s\n", st.Error.Error())
	}
}

func (s *Suite) printSummary(result SuiteResult) {
	fmt.Fprintln(s.output)
	if result.Success {
		successColor := color.New(color.FgGreen, color.Bold)
		successColor.Fprintf(s.output, "━━━ Validation Passed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d/%d checks passed in %v)",
			result.PassedSteps, result.TotalSteps, result.Duration.Round(time.Millisecond))
		successColor.Fprintln(s.output, " ━━━")
	} else {
		failColor := color.New(color.FgRed, color.Bold)
		failColor.Fprintf(s.output, "━━━ Validation Failed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d passed, %d failed)",
			result.PassedSteps, result.FailedSteps)
		failColor.Fprintln(s.output, " ━━━")
	}
	fmt.Fprintln(s.output)
}

// GetErrors returns all errors from failed steps.
func (r SuiteResult) GetErrors() []error {
	errs := make([]error, 0)
	for _, st := range r.Steps {
		if st.Status == StepFailed && st.Error != nil {
			errs = append(errs, st.Error)
		}
	}
	return errs
}

// Err joins the errors of every failed step, or returns nil.
func (r SuiteResult) Err() error {
	return errors.Join(r.GetErrors()...)
}

// Summary returns a human-readable summary string.
func (r SuiteResult) Summary() string {
	var sb strings.Builder
	if r.Success {
		sb.WriteString("Validation Passed: ")
	} else {
		sb.WriteString("Validation Failed: ")
	}
	fmt.Fprintf(&sb, "%d/%d checks passed", r.PassedSteps, r.TotalSteps)
	if r.FailedSteps > 0 {
		fmt.Fprintf(&sb, ", %d failed", r.FailedSteps)
	}
	if r.Warnings > 0 {
		fmt.Fprintf(&sb, ", %d warnings", r.Warnings)
	}
	fmt.Fprintf(&sb, " (took %v)", r.Duration.Round(time.Millisecond))
	return sb.String()
}
