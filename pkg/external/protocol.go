// Package external implements a line based player protocol over TCP, so
// that game programs can consult a finished table without speaking HTTP.
//
// Protocol overview:
//   - Server listens on a TCP port
//   - Client connects and sends one command per line
//   - Commands include: value, eval, best, set, version, exit
//   - Boards are sent in the table's text form, own pits first: 2,0,1|0,3,0
//   - Every response is a single line; failures start with "Error:"
package external

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yourusername/awari/pkg/retro"
)

// Version is reported by the version command.
const Version = "awari external player protocol 1.0"

// Server implements the external player protocol server.
type Server struct {
	table    *retro.Table
	listener net.Listener
	mu       sync.Mutex
	running  bool
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	options  ServerOptions
	log      zerolog.Logger
}

// ServerOptions configures the external player server.
type ServerOptions struct {
	Addr          string // TCP address to listen on
	PromptEnabled bool   // Send prompts after responses
	Logger        zerolog.Logger
}

// DefaultServerOptions returns sensible defaults.
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		Addr:          ":1234",
		PromptEnabled: true,
	}
}

// NewServer creates a new external player server answering from t.
func NewServer(t *retro.Table, opts ServerOptions) *Server {
	return &Server{
		table:   t,
		options: opts,
		conns:   make(map[net.Conn]struct{}),
		log:     opts.Logger.With().Str("component", "external").Logger(),
	}
}

// Start begins listening for connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("server already running")
	}

	listener, err := net.Listen("tcp", s.options.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.options.Addr, err)
	}

	s.listener = listener
	s.running = true
	s.log.Info().Str("addr", listener.Addr().String()).Msg("external player protocol listening")

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the address the server listens on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every open connection, then waits for the
// connection handlers to return.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	err := s.listener.Close()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// acceptLoop accepts incoming connections.
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				return // Server stopped
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handleConnection(conn)
	}
}

// handleConnection handles a single client connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
		s.wg.Done()
	}()

	reader := bufio.NewScanner(conn)
	prompt := s.options.PromptEnabled
	if prompt {
		conn.Write([]byte("> "))
	}

	for reader.Scan() {
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}

		response, quit := s.processCommand(line, &prompt)
		if _, err := conn.Write([]byte(response)); err != nil {
			return
		}
		if quit {
			return
		}
		if prompt {
			conn.Write([]byte("> "))
		}
	}
}

// processCommand processes a single command and returns the response and
// whether the client asked to leave.
func (s *Server) processCommand(cmd string, prompt *bool) (string, bool) {
	parts := strings.Fields(cmd)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "version":
		return Version + "\n", false
	case "help":
		return helpResponse, false
	case "exit", "quit":
		return "Goodbye\n", true
	case "set":
		return s.handleSet(args, prompt), false
	case "geometry":
		g := s.table.Geometry()
		return fmt.Sprintf("%d %d %d\n", g.Pits, g.StartSeeds, g.NBoards), false
	case "value":
		return s.handleValue(args), false
	case "evaluation", "eval":
		return s.handleEvaluation(strings.Join(args, "")), false
	case "best", "move":
		return s.handleBest(strings.Join(args, "")), false
	default:
		return fmt.Sprintf("Error: unknown command '%s'\n", command), false
	}
}

const helpResponse = `Available commands: version, help, geometry, value <code>, eval <board>, best <board>, set prompt on|off, exit
`

// handleSet handles the set command.
func (s *Server) handleSet(args []string, prompt *bool) string {
	if len(args) < 2 {
		return "Error: set requires option and value\n"
	}

	option := strings.ToLower(args[0])
	value := strings.ToLower(args[1])

	switch option {
	case "prompt":
		*prompt = value == "on" || value == "true" || value == "1"
		return fmt.Sprintf("prompt set to %v\n", *prompt)
	default:
		return fmt.Sprintf("Error: unknown option '%s'\n", option)
	}
}

// handleValue answers "value <code>" with the stored value.
func (s *Server) handleValue(args []string) string {
	if len(args) != 1 {
		return "Error: value requires a board code\n"
	}
	code, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Sprintf("Error: invalid code %q\n", args[0])
	}
	v, err := s.table.Value(code)
	if err != nil {
		return fmt.Sprintf("Error: %v\n", err)
	}
	return fmt.Sprintf("%d\n", v)
}

func (s *Server) evaluate(text string) (retro.Evaluation, error) {
	if text == "" {
		return retro.Evaluation{}, errors.New("no board specified")
	}
	b, err := s.table.Geometry().ParseBoard(text)
	if err != nil {
		return retro.Evaluation{}, err
	}
	return s.table.Evaluate(b)
}

// handleEvaluation answers with the board value followed by the value of
// each pit, "-" for pits without a valid move.
func (s *Server) handleEvaluation(text string) string {
	ev, err := s.evaluate(text)
	if err != nil {
		return fmt.Sprintf("Error: %v\n", err)
	}
	return FormatEvaluation(ev) + "\n"
}

// handleBest answers with the best pits, or "cannot move".
func (s *Server) handleBest(text string) string {
	ev, err := s.evaluate(text)
	if err != nil {
		return fmt.Sprintf("Error: %v\n", err)
	}
	best := ev.BestMoves()
	if len(best) == 0 {
		return "cannot move\n"
	}
	pits := make([]string, len(best))
	for i, p := range best {
		pits[i] = strconv.Itoa(p)
	}
	return strings.Join(pits, " ") + "\n"
}

// FormatEvaluation renders an evaluation as "value v0 v1 ...", one entry
// per own pit.
func FormatEvaluation(ev retro.Evaluation) string {
	perPit := make([]string, ev.Board.Half())
	for i := range perPit {
		perPit[i] = "-"
	}
	for _, m := range ev.Moves {
		perPit[m.Pit] = strconv.Itoa(m.Value)
	}
	return strconv.Itoa(ev.Value) + " " + strings.Join(perPit, " ")
}
