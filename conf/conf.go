// Package conf carries the static configuration for the Quartz server.
package conf

import (
	"time"
)

type Config struct {
	Server  Server
	Status  Status
	Login   Login
	Conn    Conn
	Game    Game
	Metrics Metrics
}

type Server struct {
	Bind      string
	KeepAlive bool
}

// Status feeds the server list ping and the legacy probe response.
type Status struct {
	MOTD            string
	VersionName     string
	ProtocolVersion int32
	MaxPlayers      int
}

type Login struct {
	// OnlineMode enables the encryption key exchange and the session-server
	// profile lookup. Off means offline identities and a plaintext session.
	OnlineMode bool
	// CompressionThreshold is the payload size at which frames are
	// compressed. Negative disables compression entirely.
	CompressionThreshold int32
	SessionURL           string
	SessionTimeout       time.Duration
}

type Conn struct {
	SendQueueSize int
	BridgeSize    int
	ReadBufSize   int
	WriteBufSize  int
	StopTimeout   time.Duration
}

type Game struct {
	TickInterval      time.Duration
	KeepAliveInterval time.Duration
	// KeepAliveMisses is how many unanswered keep-alives disconnect a client.
	KeepAliveMisses  int
	CommandQueueSize int
}

type Metrics struct {
	Bind string
}

func Default() Config {
	server := Server{
		Bind:      "0.0.0.0:25565",
		KeepAlive: true,
	}

	status := Status{
		MOTD:            "A Quartz server",
		VersionName:     "Quartz 1.17.1",
		ProtocolVersion: 755,
		MaxPlayers:      20,
	}

	login := Login{
		OnlineMode:           true,
		CompressionThreshold: 256,
		SessionURL:           "",
		SessionTimeout:       time.Second * 5,
	}

	conn := Conn{
		SendQueueSize: 256,
		BridgeSize:    4096,
		ReadBufSize:   30000,
		WriteBufSize:  30000,
		StopTimeout:   time.Second * 3,
	}

	game := Game{
		TickInterval:      time.Millisecond * 50,
		KeepAliveInterval: time.Second * 10,
		KeepAliveMisses:   3,
		CommandQueueSize:  64,
	}

	metrics := Metrics{
		Bind: "0.0.0.0:25580",
	}

	return Config{
		Server:  server,
		Status:  status,
		Login:   login,
		Conn:    conn,
		Game:    game,
		Metrics: metrics,
	}
}
