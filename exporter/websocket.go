package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	jerror "jalert/error"
	jlogger "jalert/logger"
	"jalert/service/model"

	"github.com/gorilla/websocket"
)

const (
	AlertStreamPath = "/alerts"
	maxClients      = 64
	writeTimeout    = 10 * time.Second
)

type websocketExporter struct {
	*baseExporter
	upgrader websocket.Upgrader
	listener net.Listener
	server   *http.Server
	// connected clients, only the delivery thread writes data frames
	clientsMutex sync.Mutex
	clients      map[*websocket.Conn]struct{}
}

// NewWebsocketExporter listens on listen and streams every alert as a JSON
// text message to the clients connected on /alerts.
func NewWebsocketExporter(name string, maxSize uint, listen string, logger jlogger.JalertLogger) (Exporter, error) {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, jerror.JalertPipelineError{
			Code:   jerror.ErrExporterCreate,
			Origin: err,
			Msg:    fmt.Sprintf("error while construct new exporter[%s]", name),
		}
	}
	newWE := &websocketExporter{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		listener: ln,
		clients:  make(map[*websocket.Conn]struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(AlertStreamPath, newWE.handleAlerts)
	newWE.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: writeTimeout,
	}
	newWE.baseExporter = newBaseExporter(name, maxSize, logger, newWE.broadcast, newWE.close)

	go func() {
		if err := newWE.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.PrintError("exporter [%s]: %s", name, err.Error())
		}
	}()
	logger.PrintInfo("exporter [%s]: streaming alerts on ws://%s%s", name, ln.Addr(), AlertStreamPath)
	return newWE, nil
}

// Addr is the address the exporter listens on.
func (we *websocketExporter) Addr() string {
	return we.listener.Addr().String()
}

func (we *websocketExporter) ClientCount() int {
	we.clientsMutex.Lock()
	defer we.clientsMutex.Unlock()
	return len(we.clients)
}

func (we *websocketExporter) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if we.ClientCount() >= maxClients {
		http.Error(w, "Maximum clients reached", http.StatusServiceUnavailable)
		return
	}
	conn, err := we.upgrader.Upgrade(w, r, nil)
	if err != nil {
		we.logger.PrintError("exporter [%s]: upgrade failed %s", we.exporterName, err.Error())
		return
	}
	we.clientsMutex.Lock()
	we.clients[conn] = struct{}{}
	we.clientsMutex.Unlock()

	// clients never send anything, reading only detects the disconnect
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				we.logger.PrintError("exporter [%s]: client %s %s", we.exporterName, conn.RemoteAddr(), err.Error())
			}
			break
		}
	}
	we.drop(conn)
}

func (we *websocketExporter) drop(conn *websocket.Conn) {
	we.clientsMutex.Lock()
	delete(we.clients, conn)
	we.clientsMutex.Unlock()
	conn.Close()
}

func (we *websocketExporter) broadcast(alert *model.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	we.clientsMutex.Lock()
	clients := make([]*websocket.Conn, 0, len(we.clients))
	for conn := range we.clients {
		clients = append(clients, conn)
	}
	we.clientsMutex.Unlock()

	var errs []error
	for _, conn := range clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			errs = append(errs, fmt.Errorf("client %s: %w", conn.RemoteAddr(), err))
			we.drop(conn)
		}
	}
	return errors.Join(errs...)
}

func (we *websocketExporter) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	err := we.server.Shutdown(ctx)

	// hijacked connections are not closed by Shutdown
	we.clientsMutex.Lock()
	defer we.clientsMutex.Unlock()
	for conn := range we.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "exporter stopped"),
			time.Now().Add(writeTimeout))
		conn.Close()
	}
	return err
}
