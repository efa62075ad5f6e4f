package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	applog "github.com/vovakirdan/wirechat-relay/internal/log"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

const reconnectDelay = 2 * time.Second

type tail struct {
	base   string
	origin string
	sender string
	color  string
	http   *http.Client
	log    *zerolog.Logger

	// lastTS is the newest timestamp printed so far
	lastTS atomic.Int64
}

func main() {
	server := flag.String("server", "http://localhost:3000", "relay base URL")
	origin := flag.String("origin", "http://localhost:3000", "Origin header sent on the socket upgrade")
	sender := flag.String("sender", "cli-user", "display name for sent messages")
	color := flag.String("color", "", "message color, e.g. #ff0000")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := applog.NewWithWriter(os.Stderr, *level, "console")

	jar, err := cookiejar.New(nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("cookie jar")
	}

	t := &tail{
		base:   strings.TrimRight(*server, "/"),
		origin: *origin,
		sender: *sender,
		color:  *color,
		http:   &http.Client{Jar: jar, Timeout: 10 * time.Second},
		log:    logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := t.ensureIdentity(ctx); err != nil {
		logger.Warn().Err(err).Msg("no identity, sending is disabled")
	}

	go t.readStdin(ctx)
	t.run(ctx)
}

// run keeps a socket open until ctx ends, reconnecting after a fixed delay.
func (t *tail) run(ctx context.Context) {
	for {
		err := t.session(ctx)
		if ctx.Err() != nil {
			return
		}
		t.log.Warn().Err(err).Dur("retry_in", reconnectDelay).Msg("socket closed, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (t *tail) session(ctx context.Context) error {
	wsURL := "ws" + strings.TrimPrefix(t.base, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{t.origin}},
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	// fill whatever was missed while disconnected
	if err := t.catchUp(ctx); err != nil {
		t.log.Warn().Err(err).Msg("catch-up failed")
	}

	for {
		var out proto.Outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		switch out.Type {
		case proto.TypeHandshake:
			t.log.Info().Interface("greeting", out.Data).Msg("connected")
		case proto.TypeNewMessage:
			raw, err := json.Marshal(out.Data)
			if err != nil {
				continue
			}
			var msg proto.Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.log.Debug().Err(err).Msg("unmarshal message")
				continue
			}
			t.print(msg)
		case proto.TypeError:
			if out.Error != nil {
				t.log.Warn().Str("code", out.Error.Code).Msg(out.Error.Msg)
			}
		default:
			// unknown kinds are ignored
		}
	}
}

func (t *tail) catchUp(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.base+"/chat", nil)
	if err != nil {
		return err
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catch-up: status %d", resp.StatusCode)
	}

	var msgs []proto.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return fmt.Errorf("decode catch-up: %w", err)
	}
	for _, m := range msgs {
		t.print(m)
	}
	return nil
}

func (t *tail) print(m proto.Message) {
	for {
		last := t.lastTS.Load()
		if m.Timestamp <= last {
			return
		}
		if t.lastTS.CompareAndSwap(last, m.Timestamp) {
			break
		}
	}
	at := time.UnixMilli(m.Timestamp).Format("15:04:05")
	fmt.Printf("[%s] %s: %s\n", at, m.Sender, m.Text)
}

func (t *tail) ensureIdentity(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.base+"/identity", nil)
	if err != nil {
		return err
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity: status %d", resp.StatusCode)
	}
	return nil
}

func (t *tail) readStdin(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if err := t.send(ctx, text); err != nil {
			t.log.Warn().Err(err).Msg("send failed")
		}
	}
}

func (t *tail) send(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"message": text, "sender": t.sender, "color": t.color})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.base+"/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("status %d: %s", resp.StatusCode, e.Error)
	}
	return nil
}
