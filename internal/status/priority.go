package status

import (
	"fmt"
	"strings"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

var priorityStyles = map[Priority]Style{
	PriorityLow:      {Label: "Low", ColorClasses: "bg-gray-100 text-gray-700", Icon: "arrow-down"},
	PriorityMedium:   {Label: "Medium", ColorClasses: "bg-blue-100 text-blue-700", Icon: "minus"},
	PriorityHigh:     {Label: "High", ColorClasses: "bg-orange-100 text-orange-700", Icon: "arrow-up"},
	PriorityCritical: {Label: "Critical", ColorClasses: "bg-red-100 text-red-700", Icon: "alert-triangle"},
}

func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := priorityStyles[p]; !ok {
		return "", fmt.Errorf("unknown priority %q", raw)
	}
	return p, nil
}

func PriorityStyleFor(raw string) Style {
	p, err := ParsePriority(raw)
	if err != nil {
		return FallbackStyle
	}
	return priorityStyles[p]
}
