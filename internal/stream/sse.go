package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// WriteEvent writes ev in text/event-stream framing.
func WriteEvent(w io.Writer, ev Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

func writeKeepAlive(w io.Writer) error {
	_, err := io.WriteString(w, ": keep-alive\n\n")
	return err
}

// ServeSSE copies sub's events to w until the subscriber is done or a write
// fails, which is how a client disconnect shows up.
func ServeSSE(w *bufio.Writer, sub *Subscriber, heartbeat time.Duration) error {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	if err := w.Flush(); err != nil {
		return err
	}

	for {
		select {
		case ev := <-sub.Events():
			if err := WriteEvent(w, ev); err != nil {
				return err
			}
		case <-ticker.C:
			if err := writeKeepAlive(w); err != nil {
				return err
			}
		case <-sub.Done():
			return w.Flush()
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}
