package printer

import (
	"fmt"
	"strings"

	"github.com/slok/deploywatch/internal/model"
)

const progressBarWidth = 30

// ProgressBar renders the step progress as a text bar. When the step total is
// unknown only the completed steps are shown.
func ProgressBar(p model.Progress) string {
	pct, ok := p.Percent()
	if !ok {
		if p.Done == 1 {
			return "1 step completed"
		}
		return fmt.Sprintf("%d steps completed", p.Done)
	}

	filled := pct * progressBarWidth / 100
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", progressBarWidth-filled)
	return fmt.Sprintf("[%s] %3d%% (%d/%d steps)", bar, pct, min(p.Done, p.Total), p.Total)
}
