package activitystream

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/digitalentity/aientity/internal/store"
)

// Handler returns a gin handler serving GET /api/stream/activity. It
// first replays any events after the client's Last-Event-ID (so a
// reconnecting consumer sees nothing twice and misses nothing), then
// streams new events as Hub.Publish delivers them.
func Handler(st *store.Store, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		flusher, ok := c.Writer.(interface{ Flush() })
		if !ok {
			c.Status(500)
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		afterSeq := int64(0)
		if lastID := c.GetHeader("Last-Event-ID"); lastID != "" {
			if n, err := strconv.ParseInt(lastID, 10, 64); err == nil {
				afterSeq = n
			}
		}

		backlog, err := st.ActivitySince(c.Request.Context(), afterSeq, 500)
		if err == nil {
			for _, event := range backlog {
				frame, err := MarshalSSE(event)
				if err != nil {
					continue
				}
				c.Writer.Write(frame)
			}
			flusher.Flush()
		}

		sub, unsubscribe := hub.subscribe()
		defer unsubscribe()

		ctx := c.Request.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case event, open := <-sub.send:
				if !open {
					return
				}
				frame, err := MarshalSSE(event)
				if err != nil {
					continue
				}
				c.Writer.Write(frame)
				flusher.Flush()
			}
		}
	}
}
