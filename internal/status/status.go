// Package status renders the lobby's HTML status page, the one
// human-facing surface in an otherwise machine-to-machine daemon.
//
// Grounded on the original weblist.py's LobbyStatusResource: the same
// page structure (one table per lobby, one row per server) and the
// same knownLobbies display names, now internal/constants.KnownLobbies.
package status

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gg2-lobby/lobbyd/internal/constants"
	"github.com/gg2-lobby/lobbyd/internal/model"
)

// Source is the read-only view over the registry a status Handler needs.
type Source interface {
	Lobbies() []uuid.UUID
	ServersInLobby(lobbyID uuid.UUID) []*model.GameServer
}

type lobbyView struct {
	Name    string
	Servers []serverRow
}

type serverRow struct {
	Passworded bool
	Name       string
	Map        string
	Players    string
	Game       template.HTML
	Address    string
}

var pageTemplate = template.Must(template.New("status").Parse(`<!doctype html>
<html>
<head>
<title>Lobby status page</title>
<meta http-equiv="content-type" content="text/html;charset=utf-8" />
</head>
<body>
{{range .}}
<h2>Active servers in the {{.Name}}</h2>
<table class="serverlist">
<thead><tr><th>PW</th><th>Name</th><th>Map</th><th>Players</th><th>Game</th><th>Address</th></tr></thead>
<tbody>
{{range .Servers}}<tr><td>{{if .Passworded}}X{{end}}</td><td>{{.Name}}</td><td>{{.Map}}</td><td>{{.Players}}</td><td>{{.Game}}</td><td>{{.Address}}</td></tr>
{{end}}</tbody>
</table>
{{end}}
</body>
</html>
`))

// Handler serves the lobby status page; cli/serve.go mounts it at
// /status. It renders the same page for every request method.
type Handler struct {
	source Source
	logger zerolog.Logger
}

// New returns a status page handler backed by source.
func New(source Source, logger zerolog.Logger) *Handler {
	return &Handler{source: source, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lobbies := h.source.Lobbies()
	views := make([]lobbyView, 0, len(lobbies))
	for _, lobby := range lobbies {
		views = append(views, h.buildLobbyView(lobby))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, views); err != nil {
		h.logger.Warn().Err(err).Msg("failed to render status page")
	}
}

func (h *Handler) buildLobbyView(lobby uuid.UUID) lobbyView {
	name, known := constants.KnownLobbies[lobby]
	if !known {
		name = fmt.Sprintf("unknown lobby %q", lobby)
	}

	servers := h.source.ServersInLobby(lobby)
	rows := make([]serverRow, 0, len(servers))
	for _, s := range servers {
		rows = append(rows, formatServerRow(s))
	}
	return lobbyView{Name: name, Servers: rows}
}

func formatServerRow(s *model.GameServer) serverRow {
	players := fmt.Sprintf("%d/%d", s.Players, s.Slots)
	if s.Bots != 0 {
		players = fmt.Sprintf("%d+%d/%d", s.Players, s.Bots, s.Slots)
	}

	var mapName string
	if m, ok := s.Infos["map"]; ok {
		mapName = string(m)
	}

	var game template.HTML
	if g, ok := s.Infos["game"]; ok {
		gameText := string(g)
		if ver, ok := s.Infos["game_ver"]; ok {
			gameText += " " + string(ver)
		}
		if url, ok := s.Infos["game_url"]; ok {
			game = template.HTML(fmt.Sprintf(`<a href="%s">%s</a>`, template.HTMLEscapeString(string(url)), template.HTMLEscapeString(gameText)))
		} else {
			game = template.HTML(template.HTMLEscapeString(gameText))
		}
	}

	var address string
	if s.IPv4Endpoint != nil {
		address = s.IPv4Endpoint.String()
	}

	return serverRow{
		Passworded: s.Passworded,
		Name:       string(s.Name),
		Map:        mapName,
		Players:    players,
		Game:       game,
		Address:    address,
	}
}
