package mcp

var levelRank = map[string]int{
	"debug":     0,
	"info":      1,
	"notice":    2,
	"warning":   3,
	"error":     4,
	"critical":  5,
	"alert":     6,
	"emergency": 7,
}

// LogMessage forwards a log line to the client as notifications/message.
// Lines are dropped before the handshake, below the level requested with
// logging/setLevel, or when the level name is unknown.
func (s *Server) LogMessage(level, logger string, data interface{}) {
	if !s.Initialized() {
		return
	}
	rank, ok := levelRank[level]
	if !ok || rank < int(s.logLevel.Load()) {
		return
	}
	params := map[string]interface{}{
		"level": level,
		"data":  data,
	}
	if logger != "" {
		params["logger"] = logger
	}
	s.Notify("notifications/message", params)
}
