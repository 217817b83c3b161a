package handler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"portfolio-chat/internal/domain"
	"portfolio-chat/internal/usecase"
)

const typingIndicator = "Assistant is typing..."

// ChatSession is the session surface the REPL renders from.
type ChatSession interface {
	SendMessage(ctx context.Context, text string) bool
	ClearMessages()
	History() []domain.Message
	Busy() bool
}

type ContactSubmitter interface {
	Send(ctx context.Context, req domain.ContactRequest) error
}

type Prefiller interface {
	Take(ctx context.Context) (string, error)
	SetQuickOption(ctx context.Context, n int) (string, error)
}

// REPL is a line-oriented front end for one chat session.
type REPL struct {
	session ChatSession
	contact ContactSubmitter
	prefill Prefiller
	logger  *slog.Logger

	in       *bufio.Reader
	readErr  error
	out      io.Writer
	rendered int
}

// NewREPL wires a REPL. prefill may be nil.
func NewREPL(session ChatSession, contact ContactSubmitter, prefill Prefiller, in io.Reader, out io.Writer, logger *slog.Logger) (*REPL, error) {
	if session == nil {
		return nil, errors.New("handler: session must not be nil")
	}
	if contact == nil {
		return nil, errors.New("handler: contact submitter must not be nil")
	}
	if in == nil || out == nil {
		return nil, errors.New("handler: input and output must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &REPL{
		session: session,
		contact: contact,
		prefill: prefill,
		logger:  logger,
		in:      bufio.NewReader(in),
		out:     out,
	}, nil
}

// Run reads lines until EOF, /quit, or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	if len(r.session.History()) == 0 {
		r.printf("Welcome\nDo you have a question about Connor?\nTry asking a question or type /help for suggestions.\n")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pending := r.takePrefill(ctx)
		if pending != "" {
			r.printf("(press Enter to send %q)\n", pending)
		}
		r.printf("> ")

		line, ok := r.readLine()
		if !ok {
			r.printf("\n")
			return r.readErr
		}
		if strings.TrimSpace(line) == "" && pending != "" {
			line = pending
		}

		quit, err := r.dispatch(ctx, line)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

func (r *REPL) dispatch(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) > 0 && strings.HasPrefix(fields[0], "/") {
		switch fields[0] {
		case "/quit", "/exit":
			return true, nil
		case "/clear":
			r.session.ClearMessages()
			r.rendered = 0
			r.printf("Conversation cleared.\n")
		case "/history":
			r.rendered = 0
			r.renderNew()
		case "/export":
			return false, r.export()
		case "/help":
			r.help(ctx, fields[1:])
		case "/contact":
			r.contactForm(ctx)
		default:
			r.printf("Unknown command %s. Type /help for options.\n", fields[0])
		}
		return false, nil
	}

	r.send(ctx, line)
	return false, nil
}

func (r *REPL) send(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		r.logger.Warn("attempted to send empty message")
		return
	}
	if r.session.Busy() {
		r.logger.Warn("message submission blocked, already processing a request")
		r.printf("%s\n", typingIndicator)
		return
	}

	r.logger.Info("sending message")
	r.printf("%s\n", typingIndicator)
	r.session.SendMessage(ctx, text)
	r.renderNew()
}

// renderNew prints history entries not yet shown.
func (r *REPL) renderNew() {
	history := r.session.History()
	if r.rendered > len(history) {
		r.rendered = 0
	}
	for _, m := range history[r.rendered:] {
		r.printf("%s\n", FormatMessage(m))
	}
	r.rendered = len(history)
}

func (r *REPL) export() error {
	raw, err := domain.EncodeHistory(r.session.History())
	if err != nil {
		return fmt.Errorf("handler: export: %w", err)
	}
	r.printf("%s\n", raw)
	return nil
}

func (r *REPL) help(ctx context.Context, args []string) {
	if len(args) == 0 || r.prefill == nil {
		r.printf("Quick options:\n")
		for i, opt := range usecase.QuickOptions {
			r.printf("  %d) %s\n", i+1, opt)
		}
		if r.prefill != nil {
			r.printf("Type /help <number> to use one.\n")
		}
		r.printf("Commands: /clear /history /export /contact /quit\n")
		return
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		r.printf("Unknown option %q.\n", args[0])
		return
	}
	if _, err := r.prefill.SetQuickOption(ctx, n); err != nil {
		r.logger.Warn("quick option rejected", "err", err)
		r.printf("Unknown option %q.\n", args[0])
	}
}

func (r *REPL) contactForm(ctx context.Context) {
	var req domain.ContactRequest
	prompts := []struct {
		label string
		dst   *string
	}{
		{"Subject", &req.Subject},
		{"Your Email", &req.Email},
		{"Message", &req.Message},
	}
	for _, p := range prompts {
		r.printf("%s: ", p.label)
		line, ok := r.readLine()
		if !ok {
			return
		}
		*p.dst = line
	}

	r.printf("Sending...\n")
	err := r.contact.Send(ctx, req)
	if err != nil {
		r.logger.Error("error submitting contact form", "err", err)
	}
	r.printf("%s\n", usecase.ContactNotice(err))
}

func (r *REPL) takePrefill(ctx context.Context) string {
	if r.prefill == nil {
		return ""
	}
	text, err := r.prefill.Take(ctx)
	if err != nil {
		r.logger.Warn("failed to read prefill", "err", err)
		return ""
	}
	return text
}

// readLine returns the next line without its terminator. Lines have no length
// limit. A final line without a newline is still returned.
func (r *REPL) readLine() (string, bool) {
	line, err := r.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			r.readErr = err
			return "", false
		}
		if line == "" {
			return "", false
		}
	}
	return strings.TrimRight(line, "\r\n"), true
}

func (r *REPL) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// FormatMessage renders one transcript entry as "[15:04] You: text".
func FormatMessage(m domain.Message) string {
	who := "Assistant"
	if m.IsUser() {
		who = "You"
	}
	return fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("15:04"), who, m.Text)
}
