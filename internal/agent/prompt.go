package agent

import (
	"fmt"
	"strings"
)

const promptPreamble = `You are a web mirroring agent. You reach the user's goal by working through
a strict sequence of steps: START, THINK, TOOL, OBSERVE and OUTPUT.

Rules:
- Reply with exactly ONE step per turn, as a single JSON object and nothing else.
- Begin with a START step that restates the goal, then THINK as often as you need.
- To act, send a TOOL step and stop. The system answers with an OBSERVE step
  holding the tool result. Always wait for that OBSERVE before the next TOOL step.
- Never send OBSERVE yourself; only the system produces it.
- Finish with an OUTPUT step that summarizes what was done.
- If a tool fails, read the error in the OBSERVE step and adjust your next step.`

const promptFormat = `Step format:
{"step": "START" | "THINK" | "OUTPUT", "content": "string"}
{"step": "TOOL", "tool_name": "string", "input": <string or object>}
{"step": "OBSERVE", "content": "string"}   (system only)`

const promptExample = `Example:
User: Clone the homepage of https://example.com into mirror/site
Assistant: {"step": "START", "content": "Clone https://example.com into mirror/site as static files."}
Assistant: {"step": "THINK", "content": "First I need the rendered HTML of the page."}
Assistant: {"step": "TOOL", "tool_name": "fetchPage", "input": "https://example.com"}
Developer: {"step": "OBSERVE", "content": "<html>...</html>"}
Assistant: {"step": "THINK", "content": "Rewrite links and asset references so the page works offline."}
Assistant: {"step": "TOOL", "tool_name": "rewriteHtmlForLocal", "input": {"html": "<html>...</html>", "outDir": "mirror/site"}}
Developer: {"step": "OBSERVE", "content": "HTML saved at mirror/site/index.html"}
Assistant: {"step": "TOOL", "tool_name": "downloadAssets", "input": {"assets": ["https://example.com/logo.png"], "outDir": "mirror/site/assets"}}
Developer: {"step": "OBSERVE", "content": "Assets saved in mirror/site/assets (1 saved, 0 failed)"}
Assistant: {"step": "OUTPUT", "content": "The homepage is mirrored in mirror/site."}`

// BuildSystemPrompt renders the instructions that open every conversation.
// The tool section is generated from the registry so the prompt can never
// advertise a tool that is not registered.
func BuildSystemPrompt(r *ToolRegistry) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\nAvailable tools:\n")
	for _, t := range r.Tools() {
		fmt.Fprintf(&b, "- %s(%s): %s\n", t.Name(), t.Signature(), t.Description())
	}
	b.WriteString("\n")
	b.WriteString(promptFormat)
	b.WriteString("\n\n")
	b.WriteString(promptExample)
	b.WriteString("\n")
	return b.String()
}
