package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/duet-cli/duet/agent"
)

// renderer prints session events as they arrive so the user can follow tool
// activity while a turn runs.
type renderer struct {
	color bool
	out   io.Writer
}

func newRenderer(color bool) *renderer {
	return &renderer{color: color, out: os.Stdout}
}

func (r *renderer) paint(color, s string) string {
	if !r.color {
		return s
	}
	return color + s + colorReset
}

// consume drains the event channel until it closes or done is signalled.
func (r *renderer) consume(events <-chan agent.Event, done <-chan struct{}) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.render(ev)
		case <-done:
			return
		}
	}
}

func (r *renderer) render(ev agent.Event) {
	switch ev.Kind {
	case agent.EventAssistantText:
		// Commentary the model attaches to tool calls. The turn's final
		// answer carries no tool calls and is printed by the REPL itself.
		text, _ := ev.Data["text"].(string)
		calls, _ := ev.Data["tool_calls"].(int)
		if text != "" && calls > 0 {
			fmt.Fprintf(r.out, "%s\n", r.paint(colorBlue, text))
		}

	case agent.EventToolCallStart:
		name, _ := ev.Data["tool_name"].(string)
		fmt.Fprintf(r.out, "%s\n", r.paint(colorYellow, fmt.Sprintf("  -> %s", name)))

	case agent.EventToolCallEnd:
		name, _ := ev.Data["tool_name"].(string)
		if msg, failed := ev.Data["error"].(string); failed {
			fmt.Fprintf(r.out, "%s\n", r.paint(colorRed, fmt.Sprintf("  <- %s failed: %s", name, msg)))
		} else {
			fmt.Fprintf(r.out, "%s\n", r.paint(colorGray, fmt.Sprintf("  <- %s done", name)))
		}

	case agent.EventLoopDetected:
		fmt.Fprintf(r.out, "%s\n", r.paint(colorYellow, "  (nudging the model out of a repeated-call loop)"))

	case agent.EventBudgetExceeded:
		fmt.Fprintf(r.out, "%s\n", r.paint(colorRed, "  tool round budget exhausted"))

	case agent.EventWarning:
		if msg, ok := ev.Data["message"].(string); ok {
			fmt.Fprintf(r.out, "%s\n", r.paint(colorYellow, "  warning: "+msg))
		}
	}
}
