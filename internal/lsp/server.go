package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sqlscout/sqlscout/internal/config"
	"github.com/sqlscout/sqlscout/internal/db"
	"github.com/sqlscout/sqlscout/internal/lint"
	"github.com/sqlscout/sqlscout/internal/schema"
	"github.com/sqlscout/sqlscout/internal/state"
)

// Server speaks LSP over a reader/writer pair (stdio in production).
type Server struct {
	cfg       *config.Config
	documents *DocumentStore

	// Database-backed features. All of these stay nil when no database is
	// configured; completion then degrades to keywords only and no
	// diagnostics are published.
	adapter db.Adapter
	cache   *schema.Cache
	linter  *lint.Linter
	store   *state.Store
	connKey string

	projectRoot string
	initialized bool

	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	logger *slog.Logger

	shutdown   bool
	shutdownMu sync.RWMutex
}

// NewServer creates a server reading requests from reader and writing
// responses to writer.
func NewServer(cfg *config.Config, reader io.Reader, writer io.Writer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{
		cfg:       cfg,
		documents: NewDocumentStore(),
		reader:    bufio.NewReader(reader),
		writer:    writer,
		logger:    logger,
	}
}

// Run processes JSON-RPC messages until the client disconnects or asks for
// shutdown.
func (s *Server) Run() error {
	s.logger.Info("language server starting")

	for {
		s.shutdownMu.RLock()
		if s.shutdown {
			s.shutdownMu.RUnlock()
			return nil
		}
		s.shutdownMu.RUnlock()

		msg, err := s.readMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("client disconnected")
				return nil
			}
			s.logger.Error("read message", "error", err)
			continue
		}

		if err := s.handleMessage(msg); err != nil {
			s.logger.Error("handle message", "method", msg.Method, "error", err)
		}
	}
}

// JSONRPCMessage is a JSON-RPC 2.0 message.
type JSONRPCMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *JSONRPCError    `json:"error,omitempty"`
}

// JSONRPCError is a JSON-RPC error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) readMessage() (*JSONRPCMessage, error) {
	var contentLength int
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break
		}

		if strings.HasPrefix(line, "Content-Length: ") {
			lengthStr := strings.TrimPrefix(line, "Content-Length: ")
			contentLength, err = strconv.Atoi(lengthStr)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	return &msg, nil
}

func (s *Server) sendResponse(id *json.RawMessage, result any, rpcErr *JSONRPCError) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
	}
	if rpcErr != nil {
		msg.Error = rpcErr
	} else {
		resultBytes, _ := json.Marshal(result)
		msg.Result = resultBytes
	}
	s.writeMessage(&msg)
}

func (s *Server) sendNotification(method string, params any) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		Method:  method,
	}
	if params != nil {
		paramsBytes, _ := json.Marshal(params)
		msg.Params = paramsBytes
	}
	s.writeMessage(&msg)
}

func (s *Server) writeMessage(msg *JSONRPCMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("marshal message", "error", err)
		return
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	_, _ = s.writer.Write([]byte(header))
	_, _ = s.writer.Write(body)
}

func (s *Server) handleMessage(msg *JSONRPCMessage) error {
	s.logger.Debug("received", "method", msg.Method)

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return s.handleInitialized(msg)
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		return s.handleExit(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/completion":
		return s.handleCompletion(msg)
	default:
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{
				Code:    -32601,
				Message: "Method not found: " + msg.Method,
			})
		}
		return nil
	}
}

// --- Lifecycle handlers ---

func (s *Server) handleInitialize(msg *JSONRPCMessage) error {
	var params InitializeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: -32602, Message: err.Error()})
		return err
	}

	s.projectRoot = URIToPath(params.RootURI)
	s.logger.Info("project root", "path", s.projectRoot)

	s.connectDatabase()

	result := InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindFull,
				Save: &SaveOptions{
					IncludeText: true,
				},
			},
			CompletionProvider: &CompletionOptions{
				TriggerCharacters: []string{".", " "},
			},
		},
	}

	s.sendResponse(msg.ID, result, nil)
	return nil
}

// connectDatabase wires up the adapter, snapshot cache, persisted state,
// and linter. Each layer is optional; failures degrade features instead of
// failing initialization.
func (s *Server) connectDatabase() {
	target := s.cfg.ConnTarget()
	if target == "" {
		s.logger.Info("no database configured, schema features disabled")
		return
	}

	adapter, err := db.New(s.cfg.Database.Adapter)
	if err != nil {
		s.logger.Error("create adapter", "error", err)
		return
	}
	if err := adapter.Connect(context.Background(), db.Config{
		Type: s.cfg.Database.Adapter,
		URL:  s.cfg.Database.URL,
		Path: s.cfg.Database.Path,
	}); err != nil {
		s.logger.Error("connect database", "adapter", s.cfg.Database.Adapter, "error", err)
		return
	}
	s.adapter = adapter
	s.connKey = state.ConnKey(s.cfg.Database.Adapter, target)

	s.cache = schema.NewCache(adapter, s.logger,
		schema.WithTTL(s.cfg.Cache.TTL),
		schema.WithBackoff(s.cfg.Cache.Backoff))

	// Seed the cache from the previous session's snapshot so completion
	// works before the first refresh finishes.
	if s.cfg.StatePath != "" {
		store := state.NewStore()
		if err := store.Open(s.cfg.StatePath); err != nil {
			s.logger.Warn("open state store", "path", s.cfg.StatePath, "error", err)
		} else {
			s.store = store
			if snap, err := store.LoadSnapshot(context.Background(), s.connKey); err != nil {
				s.logger.Warn("load persisted snapshot", "error", err)
			} else if snap != nil {
				s.cache.Seed(snap)
				s.logger.Info("seeded schema from previous session",
					"tables", len(snap.Tables), "refreshed_at", snap.RefreshedAt)
			}
		}
	}

	if s.cfg.Lint.Enabled {
		s.linter = lint.NewLinter(adapter, s.publishLintResults,
			lint.WithDebounce(s.cfg.Lint.Debounce),
			lint.WithLogger(s.logger))
	}
}

func (s *Server) handleInitialized(_ *JSONRPCMessage) error {
	s.initialized = true
	s.logger.Info("server initialized")

	if s.adapter == nil {
		s.sendNotification("window/showMessage", &ShowMessageParams{
			Type:    MessageTypeInfo,
			Message: "No database configured. Completion is limited to SQL keywords.",
		})
		return nil
	}

	// Warm the schema cache off the request loop.
	go func() {
		snap, err := s.cache.Get(context.Background(), false, true)
		if err != nil {
			s.logger.Warn("initial schema refresh failed", "error", err)
			return
		}
		if snap != nil {
			s.persistSnapshot(snap)
		}
	}()

	return nil
}

// persistSnapshot saves a snapshot for the next session. Best effort.
func (s *Server) persistSnapshot(snap *schema.Snapshot) {
	if s.store == nil || snap == nil {
		return
	}
	if err := s.store.SaveSnapshot(context.Background(), s.connKey, snap); err != nil {
		s.logger.Warn("persist snapshot", "error", err)
	}
}

func (s *Server) handleShutdown(msg *JSONRPCMessage) error {
	s.shutdownMu.Lock()
	s.shutdown = true
	s.shutdownMu.Unlock()

	if s.linter != nil {
		s.linter.Close()
	}
	if s.cache != nil {
		s.persistSnapshot(s.cache.Cached())
	}
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.adapter != nil {
		_ = s.adapter.Close()
	}

	s.sendResponse(msg.ID, nil, nil)
	s.logger.Info("server shutdown")
	return nil
}

func (s *Server) handleExit(_ *JSONRPCMessage) error {
	s.logger.Info("server exit")
	os.Exit(0)
	return nil
}

// --- Document handlers ---

func (s *Server) handleDidOpen(msg *JSONRPCMessage) error {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.documents.Open(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version)
	s.logger.Debug("opened", "uri", params.TextDocument.URI)

	s.scheduleDiagnostics(params.TextDocument.URI)
	return nil
}

func (s *Server) handleDidClose(msg *JSONRPCMessage) error {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.documents.Close(params.TextDocument.URI)
	if s.linter != nil {
		s.linter.Cancel(params.TextDocument.URI)
	}
	s.logger.Debug("closed", "uri", params.TextDocument.URI)

	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []Diagnostic{},
	})
	return nil
}

func (s *Server) handleDidChange(msg *JSONRPCMessage) error {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	// Full sync: the last change carries the whole document.
	if len(params.ContentChanges) > 0 {
		lastChange := params.ContentChanges[len(params.ContentChanges)-1]
		s.documents.Update(params.TextDocument.URI, lastChange.Text, params.TextDocument.Version)
	}

	s.scheduleDiagnostics(params.TextDocument.URI)
	return nil
}

func (s *Server) handleDidSave(msg *JSONRPCMessage) error {
	var params DidSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.scheduleDiagnostics(params.TextDocument.URI)
	return nil
}

func (s *Server) handleCompletion(msg *JSONRPCMessage) error {
	var params CompletionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: -32602, Message: err.Error()})
		return err
	}

	items := s.getCompletions(params)
	s.sendResponse(msg.ID, &CompletionList{Items: items}, nil)
	return nil
}
