package main

import (
	"fmt"
	"io"
	"sync"

	"portal-realtime/internal/portal"
)

// threadPrinter writes comments the terminal has not shown yet.
type threadPrinter struct {
	thread *portal.CommentThread
	out    io.Writer

	mu      sync.Mutex
	printed map[string]bool
}

func newThreadPrinter(thread *portal.CommentThread, out io.Writer) *threadPrinter {
	return &threadPrinter{thread: thread, out: out, printed: make(map[string]bool)}
}

func (p *threadPrinter) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.thread.Comments() {
		if portal.IsPending(c) || p.printed[c.ID] {
			continue
		}
		p.printed[c.ID] = true
		who := portal.AuthorName(c)
		if p.thread.IsMine(c) {
			who = "you"
		}
		fmt.Fprintf(p.out, "[%s] %s: %s\n", c.CreatedAt.Local().Format("15:04"), who, c.Content)
	}
}
