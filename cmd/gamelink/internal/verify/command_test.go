package verify

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/gamelink/pkg/links"
)

func TestNewVerifyCommand(t *testing.T) {
	cmd := NewVerifyCommand()

	require.NotNil(t, cmd)
	assert.Equal(t, "verify", cmd.Use)
	assert.True(t, cmd.HasExample())
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("timeout"))
}

func TestPrintReport(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	report := links.Report{Entries: []links.ReportEntry{
		{Link: links.Link{Name: "main", LocalChannel: "General", ChannelRef: "general", ChannelID: "c1", Validated: true}},
		{Link: links.Link{Name: "gone", LocalChannel: "Trade", GuildRef: "Eco", ChannelRef: "trades"}, Problem: "channel not found"},
	}}

	var out bytes.Buffer
	printReport(&out, report)
	assert.Equal(t,
		"✓ main  General -> #general (c1, duplex)\n"+
			"✗ gone  Trade -> Eco/#trades: channel not found\n"+
			"\n2 links, 1 failed\n",
		out.String())
}
