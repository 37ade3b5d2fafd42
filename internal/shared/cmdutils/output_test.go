package cmdutils

import (
	"bytes"
	"testing"

	"github.com/crystaldolphin/mcpchat/internal/schema"
	"github.com/crystaldolphin/mcpchat/internal/tools"
)

func TestPrintResponse(t *testing.T) {
	var buf bytes.Buffer
	PrintResponse(&buf, "claude", "")
	if buf.Len() != 0 {
		t.Errorf("empty text printed %q", buf.String())
	}
	PrintResponse(&buf, "claude", "hola")
	if got := buf.String(); got != "\n💬 claude\nhola\n\n" {
		t.Errorf("got %q", got)
	}
}

func TestPrintEvent(t *testing.T) {
	var buf bytes.Buffer
	PrintEvent(&buf, "llm_request", "Enviando a claude")
	PrintEvent(&buf, "done", "")
	want := "  ↳ llm_request: Enviando a claude\n  ↳ done\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestPrintToolGroups(t *testing.T) {
	var buf bytes.Buffer
	PrintToolGroups(&buf, nil)
	if buf.String() != "No MCP tools connected.\n" {
		t.Errorf("got %q", buf.String())
	}

	buf.Reset()
	PrintToolGroups(&buf, []tools.ToolGroup{{
		Origin: "web",
		Tools: []schema.ToolDescriptor{
			{Name: "fetch", Description: "Fetch a URL\nReturns the body."},
			{Name: "ping"},
		},
	}})
	want := "web (2 tools)\n  - fetch                    Fetch a URL\n  - ping\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
