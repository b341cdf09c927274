package handlers_test

import (
	"net/http"
	"net/http/httptest"
	neturl "net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/backoffice/internal/database"
	"github.com/charlesng35/backoffice/internal/handlers/testutil"
	"github.com/charlesng35/backoffice/internal/models"
	"github.com/charlesng35/backoffice/internal/permissions"
	"github.com/charlesng35/backoffice/internal/realtime"
	"github.com/charlesng35/backoffice/internal/services"
)

func readRealtimeMessage(t *testing.T, conn *websocket.Conn) realtime.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg realtime.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestRealtimeStream_PushesAccessChanges(t *testing.T) {
	env := testutil.NewEnv(t)
	root := env.CreateRootUser("password123")
	member := env.CreateUser("member", permissions.RoleUser, models.SystemCompanyID, "password123")
	rootToken := env.Token(root)

	server := httptest.NewServer(env.Router)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	query := neturl.Values{}
	query.Set("access_token", env.Token(member))
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?"+query.Encode(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// The pong proves the connection is registered before any event is published.
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "ping"}))
	require.Equal(t, "pong", readRealtimeMessage(t, conn).Event)

	dashboard := env.MenuID(database.MenuDashboard)
	set := env.Request(http.MethodPut, "/api/users/"+member.ID+"/grants", map[string]any{
		"grants": []map[string]any{{"resource_id": dashboard, "can_read": true}},
	}, rootToken)
	require.Equal(t, http.StatusOK, set.Code, set.Body.String())

	msg := readRealtimeMessage(t, conn)
	require.Equal(t, realtime.StreamAccess, msg.Stream)
	require.Equal(t, services.EventGrantsChanged, msg.Event)

	move := env.Request(http.MethodPost, "/api/menus/"+dashboard+"/move", map[string]any{"direction": "down"}, rootToken)
	require.Equal(t, http.StatusOK, move.Code, move.Body.String())
	require.Equal(t, services.EventMenuChanged, readRealtimeMessage(t, conn).Event)

	require.Equal(t, http.StatusOK, env.Request(http.MethodDelete, "/api/users/"+member.ID, nil, rootToken).Code)
	require.Equal(t, services.EventAccountDeleted, readRealtimeMessage(t, conn).Event)
}
