package oscsink

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/model"
)

func testResult() *model.EpochResult {
	return &model.EpochResult{
		Epoch:   7,
		Names:   []string{"udp_pps", "udp_bw"},
		Scaling: []float64{25, 100},
		Gating:  []float64{0.1, 1},
	}
}

func TestSender_Messages(t *testing.T) {
	s := New(config.OSCConfig{Host: "127.0.0.1", Port: 4559, ScaleAddr: "/note", GateAddr: "/amp"})
	scale, gate := s.Messages(testResult())

	assert.Equal(t, "/note", scale.Address)
	assert.Equal(t, []interface{}{float32(25), float32(100)}, scale.Arguments)
	assert.Equal(t, "/amp", gate.Address)
	assert.Equal(t, []interface{}{float32(0.1), float32(1)}, gate.Arguments)
}

func TestSender_SendOverUDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()
	port := conn.LocalAddr().(*net.UDPAddr).Port

	s := New(config.OSCConfig{Host: "127.0.0.1", Port: port, ScaleAddr: "/note", GateAddr: "/amp"})
	require.NoError(t, s.Send(context.Background(), testResult()))

	var addrs []string
	buf := make([]byte, 1500)
	for i := 0; i < 2; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, _, err := conn.ReadFrom(buf)
		require.NoError(t, err)

		packet, err := osc.ParsePacket(string(buf[:n]))
		require.NoError(t, err)
		msg, ok := packet.(*osc.Message)
		require.True(t, ok)
		addrs = append(addrs, msg.Address)
		assert.Len(t, msg.Arguments, 2)
	}
	assert.Equal(t, []string{"/note", "/amp"}, addrs)
	assert.NoError(t, s.Close())
}
