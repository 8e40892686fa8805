package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tenantdesk/internal/livechat"
	"github.com/tenantdesk/internal/model"
)

const requestTimeout = 30 * time.Second

const helpText = `commands:
  /inbox            list peers with unread counts
  /open <peerId>    open conversation (0 closes)
  /send <text>      send a message (plain text without / also sends)
  /image <path> [caption]
  /delete           delete the whole conversation
  /hide, /show      simulate window hidden / visible
  /quit`

type repl struct {
	conv     *livechat.Conversation
	out      io.Writer
	mu       sync.Mutex
	viewMu   sync.Mutex
	lastID   int64 // последнее напечатанное сообщение активной переписки
	hidden   atomic.Bool
	revoked  atomic.Bool
	readFile func(string) ([]byte, error)
}

func newREPL(store livechat.Store, dialer livechat.Dialer, selfID int64, role model.Role, out, errOut io.Writer) *repl {
	r := &repl{out: out, readFile: os.ReadFile}
	r.conv = livechat.NewConversation(livechat.ConversationOptions{
		SelfID:     selfID,
		Role:       role,
		Store:      store,
		Dialer:     &sessionDialer{next: dialer, revoked: &r.revoked},
		Session:    livechat.SessionProbeFunc(func() bool { return !r.revoked.Load() }),
		Notifier:   &termNotifier{w: errOut},
		Visibility: livechat.VisibilityFunc(r.hidden.Load),
		OnChange:   r.onChange,
		OnStateChange: func(s livechat.State) {
			r.printf("· channel %s\n", strings.ToLower(string(s)))
		},
	})
	return r
}

func run(ctx context.Context, api, session string, selfID int64, role model.Role, in io.Reader, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r := newREPL(livechat.NewHTTPStore(api, session), livechat.NewSSEDialer(api, session), selfID, role, out, errOut)
	defer r.conv.Close()

	r.execute(ctx, "/inbox")
	r.printf("%s\n", helpText)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if r.execute(ctx, sc.Text()) {
			return nil
		}
	}
	return sc.Err()
}

func (r *repl) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// onChange печатает ещё не показанные сообщения активной переписки.
func (r *repl) onChange(peerID int64) {
	if peerID == 0 || peerID != r.conv.Active() {
		return
	}
	r.viewMu.Lock()
	defer r.viewMu.Unlock()
	for _, m := range r.conv.MessagesFor(peerID) {
		if m.ID > r.lastID {
			r.printMessage(m)
			r.lastID = m.ID
		}
	}
}

func (r *repl) printMessage(m model.Message) {
	var extra string
	if n := len(m.Images); n > 0 {
		extra = fmt.Sprintf(" [%d image(s): %s]", n, strings.Join(m.Images, ", "))
	}
	r.printf("[%s] %s: %s%s\n", m.CreatedAt.Local().Format("02.01 15:04"), m.Sender.DisplayName, m.Content, extra)
}

// execute выполняет одну строку ввода. true — выход.
func (r *repl) execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	if !strings.HasPrefix(cmd, "/") {
		cmd, arg = "/send", line
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var err error
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		r.printf("%s\n", helpText)
	case "/inbox":
		err = r.inbox(ctx)
	case "/open":
		err = r.open(ctx, arg)
	case "/send":
		_, err = r.conv.Send(ctx, arg, nil)
	case "/image":
		err = r.image(ctx, arg)
	case "/delete":
		if err = r.conv.DeleteHistory(ctx); err == nil {
			r.printf("conversation deleted\n")
		}
	case "/hide":
		r.hidden.Store(true)
		r.printf("window hidden: notifications on\n")
	case "/show":
		r.hidden.Store(false)
		err = r.conv.Wake(ctx)
	default:
		r.printf("unknown command %s, try /help\n", cmd)
	}
	if err != nil {
		r.report(err)
	}
	return false
}

func (r *repl) report(err error) {
	switch {
	case errors.Is(err, livechat.ErrNoPeer):
		r.printf("no conversation open, use /open <peerId>\n")
	case livechat.IsStatus(err, http.StatusUnauthorized):
		r.revoked.Store(true)
		r.printf("session is not valid anymore, restart with a new --session\n")
	default:
		r.printf("error: %v\n", err)
	}
}

func (r *repl) inbox(ctx context.Context) error {
	peers, err := r.conv.LoadInbox(ctx)
	if err != nil {
		return err
	}
	if len(peers) == 0 {
		r.printf("inbox is empty\n")
		return nil
	}
	unread := r.conv.Unread()
	for _, p := range peers {
		room := ""
		if p.Room != nil {
			room = " room " + p.Room.Number
			if p.Room.Building != "" {
				room += "/" + p.Room.Building
			}
		}
		badge := ""
		if n := unread.Get(p.ID); n > 0 {
			badge = fmt.Sprintf(" (%d unread)", n)
		}
		r.printf("%6d  %s%s%s\n", p.ID, p.DisplayName, room, badge)
	}
	r.printf("total unread: %d\n", unread.Total())
	return nil
}

func (r *repl) open(ctx context.Context, arg string) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 0 {
		return fmt.Errorf("usage: /open <peerId>")
	}
	// пока история грузится, onChange ничего не печатает
	r.viewMu.Lock()
	r.lastID = math.MaxInt64
	r.viewMu.Unlock()

	res, err := r.conv.Select(ctx, id)

	r.viewMu.Lock()
	defer r.viewMu.Unlock()
	if err != nil || res == nil {
		r.lastID = 0
		return err
	}
	r.printf("── %s ──\n", res.Peer.DisplayName)
	r.lastID = 0
	for _, m := range r.conv.Messages() {
		r.printMessage(m)
		r.lastID = max(r.lastID, m.ID)
	}
	return nil
}

func (r *repl) image(ctx context.Context, arg string) error {
	path, caption, _ := strings.Cut(arg, " ")
	if path == "" {
		return fmt.Errorf("usage: /image <path> [caption]")
	}
	data, err := r.readFile(path)
	if err != nil {
		return err
	}
	_, err = r.conv.SendImage(ctx, filepath.Base(path), data, strings.TrimSpace(caption))
	return err
}

// sessionDialer помечает сессию отозванной, когда стрим отвечает 401,
// чтобы канал закрылся окончательно вместо переподключений.
type sessionDialer struct {
	next    livechat.Dialer
	revoked *atomic.Bool
}

func (d *sessionDialer) Dial(ctx context.Context, t livechat.Target) (livechat.Conn, error) {
	conn, err := d.next.Dial(ctx, t)
	if livechat.IsStatus(err, http.StatusUnauthorized) {
		d.revoked.Store(true)
	}
	return conn, err
}
