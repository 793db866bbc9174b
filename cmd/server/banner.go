package main

import (
	"fmt"
	"io"
	"net"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// lanAddress returns the address other devices on the network should use.
// No packet is sent: dialing UDP only selects the outbound interface.
func lanAddress() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}

func printBanner(w io.Writer, listenAddr string, uploadDir string, maxUpload int64) {
	_, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		port = listenAddr
	}

	title := color.New(color.BgBlack, color.FgGreen, color.OpBold).Render(" LanShare server started ")
	_, _ = fmt.Fprintln(w, title)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Endpoint", "Address"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.Append([]string{"Local", fmt.Sprintf("http://localhost:%s", port)})
	table.Append([]string{"Network", fmt.Sprintf("http://%s:%s", lanAddress(), port)})
	table.Append([]string{"WebSocket", fmt.Sprintf("ws://%s:%s/ws", lanAddress(), port)})
	table.Append([]string{"Uploads", uploadDir})
	table.Append([]string{"Max upload", fmt.Sprintf("%d MiB", maxUpload>>20)})
	table.Render()
}
