package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/ephemeral-chat/internal/store"
)

// RoomInfo serves GET /roominfo/:code, a read-only existence probe.
func RoomInfo(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, st.Info(c.Param("code")))
	}
}

// RoomData serves GET /room-data/:code, a read-only snapshot of the room's
// history, user list, and access settings.
func RoomData(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, st.Data(c.Param("code")))
	}
}
