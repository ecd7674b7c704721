package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/m-mizutani/gitpulse/pkg/domain/model"
)

// printer renders commits and subscriber messages for the terminal
type printer struct {
	w io.Writer

	hash     *color.Color
	refs     *color.Color
	author   *color.Color
	kind     *color.Color
	info     *color.Color
	warning  *color.Color
	errColor *color.Color
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:        w,
		hash:     color.New(color.FgYellow),
		refs:     color.New(color.FgCyan, color.Bold),
		author:   color.New(color.Faint),
		kind:     color.New(color.FgGreen, color.Bold),
		info:     color.New(color.FgBlue),
		warning:  color.New(color.FgYellow),
		errColor: color.New(color.FgRed, color.Bold),
	}
}

func (p *printer) commit(c *model.CommitRecord) {
	line := p.hash.Sprint(c.ShortID())
	if len(c.Decorations) > 0 {
		line += " " + p.refs.Sprintf("(%s)", strings.Join(c.Decorations, ", "))
	}
	line += " " + c.Subject
	line += " " + p.author.Sprintf("<%s, %s>", c.Author, c.Timestamp.Format("2006-01-02 15:04"))
	fmt.Fprintln(p.w, line)
}

func (p *printer) baseline(b *model.Baseline) {
	fmt.Fprintf(p.w, "%s %s (%d commits)\n", p.kind.Sprint("baseline"), b.RepositoryPath, len(b.Commits))
	for _, c := range b.Commits {
		p.commit(c)
	}
	if b.Truncated {
		fmt.Fprintln(p.w, p.warning.Sprintf("history truncated to the most recent %d commits", len(b.Commits)))
	}
}

func (p *printer) change(e *model.ChangeEvent) {
	label := p.kind.Sprintf("%-8s", e.Kind)
	switch e.Kind {
	case model.ChangeKindCheckout:
		target := ""
		if e.Commit != nil {
			target = " " + p.hash.Sprint(e.Commit.ShortID())
		}
		fmt.Fprintf(p.w, "%s %s%s\n", label, p.refs.Sprint(e.Ref), target)
	case model.ChangeKindPush:
		ref := e.RemoteBranch.Branch
		if e.RemoteBranch.Remote != "" {
			ref = e.RemoteBranch.Remote + "/" + ref
		}
		fmt.Fprintf(p.w, "%s %s\n", label, p.refs.Sprint(ref))
	default:
		fmt.Fprintf(p.w, "%s ", label)
		p.commit(e.Commit)
	}
}

func (p *printer) advisory(a *model.Advisory) {
	c := p.info
	switch a.Severity {
	case model.SeverityWarning:
		c = p.warning
	case model.SeverityError:
		c = p.errColor
	}
	fmt.Fprintf(p.w, "%s %s\n", c.Sprintf("[%s]", a.Severity), a.Message)
}

func (p *printer) message(m *model.Message) {
	switch m.Type {
	case model.MessageTypeBaseline:
		if m.Baseline != nil {
			p.baseline(m.Baseline)
		}
	case model.MessageTypeChange:
		if m.Change != nil {
			p.change(m.Change)
		}
	case model.MessageTypeAdvisory:
		if m.Advisory != nil {
			p.advisory(m.Advisory)
		}
	}
}
