package server

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/atikulmunna/logrelay/internal/model"
)

// pollResponse is the body of GET /logs/data. LastTimestamp is null when
// nothing was returned and no watermark was supplied.
type pollResponse struct {
	Logs          []model.LogEntry `json:"logs"`
	LastTimestamp *string          `json:"last_timestamp"`
}

// handlePoll serves GET /logs/data for one logger (?logger=) or a merge of
// several (?logger0=&logger1=..., read while the indices stay contiguous).
func (s *Server) handlePoll(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	watermark, hasWatermark := c.GetQuery("last_timestamp")

	m := s.manager()
	names := pollNames(c)
	logs := make([]model.LogEntry, 0)
	for _, name := range names {
		logs = append(logs, m.ReadSince(name, watermark, limit)...)
	}
	if len(names) > 1 {
		sort.SliceStable(logs, func(i, j int) bool {
			return logs[i].Timestamp < logs[j].Timestamp
		})
	}

	resp := pollResponse{Logs: logs}
	switch {
	case len(logs) > 0:
		last := logs[len(logs)-1].Timestamp
		resp.LastTimestamp = &last
	case hasWatermark && watermark != "":
		resp.LastTimestamp = &watermark
	}
	c.JSON(http.StatusOK, resp)
}

func pollNames(c *gin.Context) []string {
	if _, ok := c.GetQuery("logger0"); ok {
		var names []string
		for i := 0; ; i++ {
			name, ok := c.GetQuery("logger" + strconv.Itoa(i))
			if !ok {
				return names
			}
			names = append(names, name)
		}
	}
	if name, ok := c.GetQuery("logger"); ok {
		return []string{name}
	}
	return nil
}

// handleClear serves DELETE /logs/data: ?logger= empties one history,
// ?session= removes a session, no parameter empties every history.
func (s *Server) handleClear(c *gin.Context) {
	m := s.manager()
	if session, ok := c.GetQuery("session"); ok {
		if !m.ClearSession(session) {
			notFound(c, "session")
			return
		}
		s.log.Info("session cleared", zap.String("session", session))
		c.JSON(http.StatusOK, gin.H{"cleared": "session", "session": session})
		return
	}
	if name := c.Query("logger"); name != "" {
		m.Clear(name)
		c.JSON(http.StatusOK, gin.H{"cleared": "logger", "logger": name})
		return
	}
	m.Clear("")
	c.JSON(http.StatusOK, gin.H{"cleared": "all"})
}
