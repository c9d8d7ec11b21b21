package supervisor

import (
	"fmt"

	"github.com/agentfleet/pilot/internal/agents"
)

// ColorizeLine prefixes a tailed log line with the role's ANSI color and
// emoji, for terminal consumers of WatchTail (e.g. pilotctl's follow mode).
func ColorizeLine(role, line string) string {
	colors := agents.GetAgentColors(role)
	return fmt.Sprintf("%s%s %s%s", colors.FgColor, colors.Emoji, line, colors.Reset)
}
