package main

import (
	"flag"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/skeinlabs/skein/commons"
	"github.com/skeinlabs/skein/crdt"
)

// client is the server-side view of one participant.
type client struct {
	id      uuid.UUID
	name    string
	site    crdt.SiteID
	version crdt.VClock
}

// Upgrader instance to upgrade all HTTP connections to a WebSocket.
var upgrader = websocket.Upgrader{}

// Currently active client connections, plus the site ID counter. Guarded
// by mu; both the connection handlers and the broadcaster touch them.
var (
	mu            sync.Mutex
	activeClients = make(map[*websocket.Conn]*client)
	nextSiteID    crdt.SiteID
)

// envelope pairs an inbound message with its source connection so the
// broadcaster can skip the origin.
type envelope struct {
	msg    commons.Message
	source *websocket.Conn
}

// Channel for client messages.
var messageChan = make(chan envelope)

func main() {
	// Parse flags.
	addr := flag.String("addr", ":9000", "Server's network address")
	stability := flag.Duration("stability", 10*time.Second, "Causal-stability watermark broadcast interval")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/", handleConn)

	// Handle incoming messages.
	go handleMsg()

	// Periodically compute and broadcast the stability watermark.
	go broadcastWatermark(*stability)

	// Start the server.
	log.Printf("Starting server on %s", *addr)
	err := http.ListenAndServe(*addr, mux)
	if err != nil {
		log.Fatal("Error starting server, exiting.", err)
	}
}

// handleConn upgrades the connection, hands the client its identity, asks
// a peer for the current document, then pumps inbound messages to the
// broadcaster.
func handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading connection to websocket: %v", err)
		return
	}
	defer conn.Close()

	c := registerClient(conn)

	// Deliver the assigned site ID before anything else; the client must
	// not generate operations under site 0.
	siteMsg := commons.Message{Type: commons.SiteIDMessage, Text: strconv.Itoa(int(c.site)), ID: c.id}
	if err := conn.WriteJSON(siteMsg); err != nil {
		log.Printf("Error sending site ID to %v: %v", c.id, err)
	}

	// Ask an existing participant to sync the document to the newcomer.
	requestDocFor(c, conn)

	for {
		var msg commons.Message

		// Read message from the connection.
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("Closing connection with ID: %v", c.id)
			unregisterClient(conn)
			break
		}

		// Stamp the message with the sender's identity. Document syncs are
		// exempt: their ID names the requester the reply must be routed to,
		// not the responder.
		if msg.Type != commons.DocSyncMessage {
			msg.ID = c.id
		}

		messageChan <- envelope{msg: msg, source: conn}
	}
}

// registerClient assigns the next site ID and records the connection.
func registerClient(conn *websocket.Conn) *client {
	mu.Lock()
	defer mu.Unlock()

	nextSiteID++
	c := &client{
		id:      uuid.New(),
		site:    nextSiteID,
		version: crdt.VClock{},
	}
	activeClients[conn] = c
	return c
}

func unregisterClient(conn *websocket.Conn) {
	mu.Lock()
	defer mu.Unlock()
	delete(activeClients, conn)
}

// requestDocFor asks one existing client to send its operation log to the
// newcomer. A fresh room has no one to ask, which is fine: the newcomer
// starts from an empty document.
func requestDocFor(c *client, conn *websocket.Conn) {
	mu.Lock()
	defer mu.Unlock()

	for peer, pc := range activeClients {
		if peer == conn {
			continue
		}
		req := commons.Message{Type: commons.DocReqMessage, ID: c.id}
		if err := peer.WriteJSON(req); err != nil {
			log.Printf("Error requesting document from %v: %v", pc.id, err)
			continue
		}
		return
	}
}

// handleMsg listens to the messageChan channel and dispatches messages:
// version reports update the sender's vector clock, document syncs are
// routed to their requester, everything else is broadcast.
func handleMsg() {
	for {
		env := <-messageChan
		msg := env.msg

		switch msg.Type {
		case commons.VersionMessage:
			mu.Lock()
			if c, ok := activeClients[env.source]; ok {
				c.version.Merge(msg.Version)
			}
			mu.Unlock()
			continue

		case commons.DocSyncMessage:
			routeDocSync(msg)
			continue

		case commons.JoinMessage:
			mu.Lock()
			if c, ok := activeClients[env.source]; ok {
				c.name = msg.Username
			}
			mu.Unlock()
		}

		// Log each message to stdout.
		t := time.Now().Format(time.ANSIC)
		if msg.Type == commons.OperationMessage {
			color.Green("%s >> %s: %s %s\n", t, msg.Username, msg.Operation.Kind, msg.Operation.ID)
		} else {
			color.Green("%s >> %s %s\n", t, msg.Username, msg.Text)
		}

		broadcast(msg, env.source)

		if msg.Type == commons.JoinMessage {
			broadcast(commons.Message{Type: commons.UsersMessage, Text: activeUserList()}, nil)
		}
	}
}

// activeUserList returns the names of all connected clients.
func activeUserList() string {
	mu.Lock()
	defer mu.Unlock()

	names := make([]string, 0, len(activeClients))
	for _, c := range activeClients {
		if c.name != "" {
			names = append(names, c.name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// routeDocSync forwards an operation log to the client that requested it.
func routeDocSync(msg commons.Message) {
	mu.Lock()
	defer mu.Unlock()

	for conn, c := range activeClients {
		if c.id != msg.ID {
			continue
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("Error syncing document to %v: %v", c.id, err)
			conn.Close()
			delete(activeClients, conn)
		}
		return
	}
}

// broadcast sends msg to every active client except the source.
func broadcast(msg commons.Message, source *websocket.Conn) {
	mu.Lock()
	defer mu.Unlock()

	for conn, c := range activeClients {
		if conn == source {
			continue
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("Error sending message to client %v: %v", c.id, err)
			conn.Close()
			delete(activeClients, conn)
		}
	}
}

// snapshotVersions copies every client's reported clock under the lock.
// The watermark fold runs outside the lock, so it must never share map
// storage with the version merges the broadcaster performs.
func snapshotVersions() []crdt.VClock {
	mu.Lock()
	defer mu.Unlock()

	versions := make([]crdt.VClock, 0, len(activeClients))
	for _, c := range activeClients {
		versions = append(versions, c.version.Clone())
	}
	return versions
}

// broadcastWatermark periodically folds all clients' reported vector
// clocks into their element-wise minimum and broadcasts it. Everything at
// or below the watermark has been observed by every active client, so
// tombstones under it are safe to reclaim.
func broadcastWatermark(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		versions := snapshotVersions()
		if len(versions) == 0 {
			continue
		}

		watermark := crdt.MinClock(versions...)
		if len(watermark) == 0 {
			continue
		}

		broadcast(commons.Message{Type: commons.StableMessage, Version: watermark}, nil)
	}
}
