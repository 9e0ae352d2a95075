package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/leofalp/finagent/patterns/graph"
)

// progressPrinter returns an event handler writing one line per completed
// node and taken route.
func progressPrinter(output io.Writer) func(graph.Event) {
	var mu sync.Mutex
	return func(event graph.Event) {
		line := progressLine(event)
		if line == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(output, line)
	}
}

func progressLine(event graph.Event) string {
	switch event.Type {
	case graph.EventNodeComplete:
		return fmt.Sprintf("[%s] step %d: %s done in %s",
			event.Graph, event.Step, event.NodeID, event.Duration.Round(time.Millisecond))
	case graph.EventRoute:
		return fmt.Sprintf("[%s] step %d: %s -> %s (%s)",
			event.Graph, event.Step, event.NodeID, event.Target, event.Outcome)
	default:
		return ""
	}
}
