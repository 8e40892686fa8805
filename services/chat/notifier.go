package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/tenantdesk/internal/livechat"
)

// termNotifier — «системное уведомление» терминала: строка в stderr со звонком.
type termNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func (n *termNotifier) Permission() livechat.Permission { return livechat.PermissionGranted }

func (n *termNotifier) Notify(title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintf(n.w, "\a🔔 %s: %s\n", title, body)
	return err
}
