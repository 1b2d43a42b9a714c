package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/astralforge/lobby/internal/adapters/signal"
	"github.com/astralforge/lobby/internal/app"
	"github.com/astralforge/lobby/internal/config"
	"github.com/astralforge/lobby/internal/party"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	ctl *signal.LobbyWSController,
	players *app.Registry,
	parties *party.Registry,
) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("LobbySessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	api := r.Group("/api")

	// GET /api/players lists connected players and their states.
	api.GET("/players", func(c *gin.Context) {
		type playerInfo struct {
			ID    int    `json:"id"`
			Login string `json:"login"`
			State string `json:"state"`
		}
		connected := players.ConnectedPlayers()
		out := make([]playerInfo, 0, len(connected))
		for _, p := range connected {
			out = append(out, playerInfo{
				ID:    int(p.ID),
				Login: p.Login,
				State: ctl.Guard.StateOf(p).String(),
			})
		}
		c.JSON(http.StatusOK, gin.H{"players": out})
	})

	// GET /api/parties lists current parties with member settings.
	api.GET("/parties", func(c *gin.Context) {
		type memberInfo struct {
			Player   int    `json:"player"`
			Factions []bool `json:"factions"`
			Ready    bool   `json:"ready"`
		}
		type partyInfo struct {
			Owner   int          `json:"owner"`
			Members []memberInfo `json:"members"`
		}
		current := parties.Parties()
		out := make([]partyInfo, 0, len(current))
		for _, p := range current {
			info := partyInfo{Owner: int(p.OwnerID), Members: make([]memberInfo, 0, len(p.Members))}
			for _, m := range p.Members {
				info.Members = append(info.Members, memberInfo{
					Player:   int(m.PlayerID),
					Factions: m.Factions[:],
					Ready:    m.Ready,
				})
			}
			out = append(out, info)
		}
		c.JSON(http.StatusOK, gin.H{"parties": out})
	})

	api.GET("/ws/lobby", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws lobby endpoint hit")
		ctl.HandleLobby(ctx, c)
	})

	return r
}
