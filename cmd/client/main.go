package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const headerIdentity = "X-User"

// Config defines the client-side environment variables.
type Config struct {
	ServerAddr string `envconfig:"CHAT_SERVER_ADDR" default:"http://localhost:8080"`
	Name       string `envconfig:"CHAT_NAME" required:"true"`
	// The poll doubles as a heartbeat: keep it well under the server's
	// presence timeout or the server will announce our departure.
	PollInterval time.Duration `envconfig:"CHAT_POLL_INTERVAL" default:"2s"`
	// CHAT_COLOURS enables colorized output for better readability
	Colours bool `envconfig:"CHAT_COLOURS" default:"true"`
}

type message struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
	Time string `json:"time"`
}

type participant struct {
	Name     string `json:"name"`
	LastSeen string `json:"lastSeen"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the client lifecycle: registration, the poll/heartbeat loop
// and the interactive prompt. This pattern ensures clean resource
// management and error propagation.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if !config.Colours {
		color.Disable()
	}

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &chatClient{
		http:   &http.Client{Timeout: 10 * time.Second},
		base:   strings.TrimRight(config.ServerAddr, "/"),
		name:   config.Name,
		seen:   make(map[string]struct{}),
		events: make(chan string, 64),
	}

	// 3. Join the room.
	if err := c.register(ctx); err != nil {
		return exitRuntime, fmt.Errorf("could not join %s: %w", config.ServerAddr, err)
	}
	color.Green.Printf(">>> Connected to %s as %s (Ctrl+C to quit, /who for the room, /to <name> <text> for a private word)\n",
		config.ServerAddr, config.Name)

	// 4. Poll loop. Each tick refreshes our presence and fetches the
	// conversation; only messages we have not printed yet are displayed.
	go c.poll(ctx, config.PollInterval)

	// 5. Prompt loop, reading one command or message per line.
	go c.readInput(ctx)

	for {
		select {
		case <-ctx.Done():
			color.Gray.Println("Leaving the room...")
			return exitOK, nil
		case line := <-c.events:
			fmt.Println(line)
		case err := <-c.fatal():
			return exitRuntime, err
		}
	}
}

type chatClient struct {
	http   *http.Client
	base   string
	name   string
	events chan string

	mu     sync.Mutex
	seen   map[string]struct{}
	fatalC chan error
}

func (c *chatClient) fatal() chan error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fatalC == nil {
		c.fatalC = make(chan error, 1)
	}
	return c.fatalC
}

func (c *chatClient) register(ctx context.Context) error {
	status, body, err := c.do(ctx, http.MethodPost, "/participants", map[string]string{"name": c.name})
	if err != nil {
		return err
	}
	if status == http.StatusConflict {
		return fmt.Errorf("the name %q is already taken", c.name)
	}
	if status != http.StatusCreated {
		return fmt.Errorf("registration refused: %s", body)
	}
	return nil
}

func (c *chatClient) poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if status, _, err := c.do(ctx, http.MethodPost, "/status", nil); err == nil && status == http.StatusNotFound {
				// Evicted for inactivity, e.g. after the laptop slept.
				c.fatal() <- fmt.Errorf("the server no longer knows %s, please reconnect", c.name)
				return
			}
			c.refresh(ctx)
		}
	}
}

func (c *chatClient) refresh(ctx context.Context) {
	status, body, err := c.do(ctx, http.MethodGet, "/messages", nil)
	if err != nil || status != http.StatusOK {
		return
	}
	var msgs []message
	if err := json.Unmarshal([]byte(body), &msgs); err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range msgs {
		if _, ok := c.seen[m.ID]; ok {
			continue
		}
		c.seen[m.ID] = struct{}{}
		c.events <- render(m, c.name)
	}
}

// render formats one message line, colored by kind.
func render(m message, self string) string {
	switch {
	case m.Type == "status":
		return color.Gray.Sprintf("         %s %s", m.From, m.Text)
	case m.Type == "private_message" && m.From == self:
		return color.Magenta.Sprintf("%s %s diz reservadamente para %s: %s", m.Time, m.From, m.To, m.Text)
	case m.Type == "private_message":
		return color.Magenta.Sprintf("%s %s diz reservadamente: %s", m.Time, m.From, m.Text)
	case m.From == self:
		return color.Cyan.Sprintf("%s %s: %s", m.Time, m.From, m.Text)
	default:
		return fmt.Sprintf("%s %s: %s", m.Time, m.From, m.Text)
	}
}

func (c *chatClient) readInput(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/who":
			c.printRoom(ctx)
		case strings.HasPrefix(line, "/to "):
			rest := strings.TrimPrefix(line, "/to ")
			target, text, found := strings.Cut(rest, " ")
			if !found {
				color.Yellow.Println("usage: /to <name> <text>")
				continue
			}
			c.send(ctx, target, text, "private_message")
		default:
			c.send(ctx, "Todos", line, "message")
		}
	}
}

func (c *chatClient) send(ctx context.Context, to, text, kind string) {
	status, body, err := c.do(ctx, http.MethodPost, "/messages",
		map[string]string{"to": to, "text": text, "type": kind})
	if err != nil {
		color.Red.Printf("send failed: %v\n", err)
		return
	}
	if status != http.StatusCreated {
		color.Red.Printf("send refused: %s\n", body)
	}
}

func (c *chatClient) printRoom(ctx context.Context) {
	status, body, err := c.do(ctx, http.MethodGet, "/participants", nil)
	if err != nil || status != http.StatusOK {
		color.Red.Println("could not list the room")
		return
	}
	var participants []participant
	if err := json.Unmarshal([]byte(body), &participants); err != nil {
		color.Red.Println("could not list the room")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Last seen"})
	for _, p := range participants {
		table.Append([]string{p.Name, p.LastSeen})
	}
	table.Render()
}

func (c *chatClient) do(ctx context.Context, method, path string, payload any) (int, string, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, "", err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return 0, "", err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerIdentity, c.name)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(body), nil
}
