package driver

import (
	"fmt"
	"math"

	"github.com/colorfulnotion/litmus/common"
)

// TranslationResults counts the outcome of every file a run touched.
type TranslationResults struct {
	Succeeded   int
	Unsupported int
	Skipped     int
	Failed      int
}

func (r TranslationResults) Total() int {
	return r.Succeeded + r.Unsupported + r.Skipped + r.Failed
}

// PercentageSucceeded is rounded to one decimal place.
func (r TranslationResults) PercentageSucceeded() float64 {
	if r.Total() == 0 {
		return 0
	}
	f := float64(r.Succeeded) / float64(r.Total())
	return math.Round(f*1000) / 10
}

// Summary is the closing line of a batch run.
func (r TranslationResults) Summary(color bool) string {
	return fmt.Sprintf("[%s succeeded (%s%%), %s unsupported, %s skipped, %s failed]",
		common.Colorize(color, fmt.Sprint(r.Succeeded), common.ColorGreen),
		common.Colorize(color, fmt.Sprint(r.PercentageSucceeded()), common.ColorGreen),
		common.Colorize(color, fmt.Sprint(r.Unsupported), common.ColorBlue),
		common.Colorize(color, fmt.Sprint(r.Skipped), common.ColorYellow),
		common.Colorize(color, fmt.Sprint(r.Failed), common.ColorRed),
	)
}
