package diag

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/alexbotov/itchdesk/pkg/itchio"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Console writes one line per request:
//
//	[api] 12ms wait, 85ms http, GET my-games with {"page":1}
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
	tag    func(format string, a ...interface{}) string
	timing func(format string, a ...interface{}) string
}

// NewConsole writes to w, coloring output only when w is a terminal
func NewConsole(w io.Writer, prefix string) *Console {
	plain := func(format string, a ...interface{}) string {
		return fmt.Sprintf(format, a...)
	}
	c := &Console{
		w:      w,
		prefix: prefix,
		tag:    plain,
		timing: plain,
	}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) && !color.NoColor {
		c.tag = color.New(color.FgCyan).SprintfFunc()
		c.timing = color.New(color.FgHiBlack).SprintfFunc()
	}
	return c
}

// NewStderr is NewConsole on standard error
func NewStderr() *Console {
	return NewConsole(os.Stderr, "api")
}

// Record implements itchio.DiagnosticSink
func (c *Console) Record(d itchio.Diagnostic) {
	line := fmt.Sprintf("%s %s %s %s with %s\n",
		c.tag("[%s]", c.prefix),
		c.timing("%dms wait, %dms http,", d.WaitMS, d.HTTPMS),
		strings.ToUpper(d.Method),
		d.ShortPath,
		d.DataJSON)

	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.w, line)
}
