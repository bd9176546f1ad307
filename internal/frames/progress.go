package frames

import (
	"fmt"
	"strconv"
	"strings"
)

// progressBlock accumulates the key=value lines ffmpeg writes with
// -progress. A block ends with a "progress=continue" or "progress=end" line.
type progressBlock struct {
	frame   int
	outTime string
	done    bool
}

// add consumes one line and reports whether it closed a block.
func (p *progressBlock) add(line string) bool {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return false
	}
	value = strings.TrimSpace(value)
	switch key {
	case "frame":
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			p.frame = n
		}
	case "out_time":
		p.outTime = value
	case "progress":
		p.done = value == "end"
		return true
	}
	return false
}

func (p *progressBlock) message(maxUnits int) string {
	written := p.frame
	if maxUnits > 0 && written > maxUnits {
		written = maxUnits
	}
	msg := fmt.Sprintf("decoded %d/%d frames", written, maxUnits)
	if p.outTime != "" && p.outTime != "N/A" {
		msg += " at " + strings.TrimSuffix(p.outTime, "000")
	}
	return msg
}
