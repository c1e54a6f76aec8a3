package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martichou/rquickshare-go/logging"
	"github.com/martichou/rquickshare-go/session"
)

func TestNewBindsEphemeralPort(t *testing.T) {
	sup, err := New(0, session.Deps{Log: logging.New("test")})
	require.NoError(t, err)
	defer sup.listener.Close()

	addr, ok := sup.Addr().(interface{ String() string })
	require.True(t, ok)
	assert.NotEmpty(t, addr.String())
}

func TestCommandRoutesToRegisteredSession(t *testing.T) {
	sup, err := New(0, session.Deps{Log: logging.New("test")})
	require.NoError(t, err)
	defer sup.listener.Close()

	ch := make(chan session.Command, 1)
	sup.registerCommands("s1", ch)
	defer sup.unregisterCommands("s1")

	sup.Command(session.Command{SessionID: "s1", Action: session.ConsentAccept})

	select {
	case cmd := <-ch:
		assert.Equal(t, session.ConsentAccept, cmd.Action)
	default:
		t.Fatal("command was not routed to the registered session channel")
	}
}

func TestCommandDropsForUnknownSession(t *testing.T) {
	sup, err := New(0, session.Deps{Log: logging.New("test")})
	require.NoError(t, err)
	defer sup.listener.Close()

	// Should not panic or block even though no session is registered.
	sup.Command(session.Command{SessionID: "unknown", Action: session.TransferCancel})
}

func TestCommandDropsWhenChannelFull(t *testing.T) {
	sup, err := New(0, session.Deps{Log: logging.New("test")})
	require.NoError(t, err)
	defer sup.listener.Close()

	ch := make(chan session.Command, 1)
	ch <- session.Command{SessionID: "s1", Action: session.ConsentAccept}
	sup.registerCommands("s1", ch)
	defer sup.unregisterCommands("s1")

	// Channel is already full; Command must not block.
	sup.Command(session.Command{SessionID: "s1", Action: session.TransferCancel})
}
