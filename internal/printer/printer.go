// Package printer defines the user-facing output abstraction for the opkg
// CLI, adapted from kpt's internal/printer: a small interface so command
// packages never write to os.Stdout/os.Stderr directly, extended with
// color-coded skipped/failed/warning markers (fatih/color, gated on TTY via
// mattn/go-isatty) since spec §7 requires distinguishing *skipped* from
// *failed* in bulk-command output.
package printer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/opkgdev/opkg/internal/types"
)

// Printer is the capability opkg commands use to report progress.
type Printer interface {
	Printf(format string, args ...interface{})
	OptPrintf(opt *Options, format string, args ...interface{})
	Skipf(format string, args ...interface{})
	Failf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Options configures a single printed line.
type Options struct {
	Indentation    int
	OutputToStderr bool
	PkgPath        types.UniquePath
	PkgDisplayPath types.DisplayPath
}

func NewOpt() *Options { return &Options{} }

func (o *Options) Pkg(p types.UniquePath) *Options {
	o.PkgPath = p
	return o
}

func (o *Options) PkgDisplay(p types.DisplayPath) *Options {
	o.PkgDisplayPath = p
	return o
}

func (o *Options) Indent(i int) *Options {
	o.Indentation = i
	return o
}

func (o *Options) Stderr() *Options {
	o.OutputToStderr = true
	return o
}

type printer struct {
	outStream io.Writer
	errStream io.Writer
	color     bool
}

// New returns a Printer writing to outStream/errStream (defaulting to
// os.Stdout/os.Stderr). Color is enabled only when errStream is a TTY.
func New(outStream, errStream io.Writer) Printer {
	if outStream == nil {
		outStream = os.Stdout
	}
	if errStream == nil {
		errStream = os.Stderr
	}
	useColor := false
	if f, ok := errStream.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &printer{outStream: outStream, errStream: errStream, color: useColor}
}

func (p *printer) Printf(format string, args ...interface{}) {
	p.OptPrintf(NewOpt(), format, args...)
}

func (p *printer) OptPrintf(opt *Options, format string, args ...interface{}) {
	w := p.outStream
	if opt != nil && opt.OutputToStderr {
		w = p.errStream
	}
	indent := ""
	if opt != nil {
		for i := 0; i < opt.Indentation; i++ {
			indent += " "
		}
	}
	fmt.Fprintf(w, indent+format, args...)
}

func (p *printer) Skipf(format string, args ...interface{}) {
	p.tag(p.outStream, color.FgYellow, "skipped", format, args...)
}

func (p *printer) Failf(format string, args ...interface{}) {
	p.tag(p.errStream, color.FgRed, "failed", format, args...)
}

func (p *printer) Warnf(format string, args ...interface{}) {
	p.tag(p.errStream, color.FgYellow, "warning", format, args...)
}

func (p *printer) tag(w io.Writer, c color.Attribute, tag, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if p.color {
		fmt.Fprintf(w, "%s: %s\n", color.New(c).Sprint(tag), msg)
		return
	}
	fmt.Fprintf(w, "%s: %s\n", tag, msg)
}

type ctxKey struct{}

// WithContext returns a context carrying p.
func WithContext(ctx context.Context, p Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContextOrDie returns the Printer stored on ctx, defaulting to a
// stdout/stderr printer if none was set.
func FromContextOrDie(ctx context.Context) Printer {
	if p, ok := ctx.Value(ctxKey{}).(Printer); ok {
		return p
	}
	return New(nil, nil)
}
