package dashboard

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// Server exposes a Hub over HTTP: a websocket endpoint streaming Snapshots
// and a minimal status page. Unlike the teacher's root_view, gridlock has
// no per-cell view components to compose into a template, so there is a
// single aggregate JSON stream rather than a recursively parsed page.
type Server struct {
	hub    *Hub
	router *mux.Router
}

// NewServer wires a Server's routes against hub.
func NewServer(hub *Hub) *Server {
	s := &Server{hub: hub, router: mux.NewRouter()}
	s.router.HandleFunc("/ws", s.handleWS)
	s.router.HandleFunc("/", s.handleIndex)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	updates, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	c, err := newClient(updates, w, r)
	if err != nil {
		return
	}
	_ = c.sync()
}

const indexPage = `<!DOCTYPE html>
<html>
<head><link rel="icon" href="data:,"></head>
<body>
<pre id="tick">waiting for first tick...</pre>
<script>
const ws = new WebSocket("ws://" + window.location.host + "/ws");
ws.onmessage = function(event) {
	const snap = JSON.parse(event.data);
	document.getElementById("tick").textContent = JSON.stringify(snap, null, 2);
};
</script>
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexPage)
}
