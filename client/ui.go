package main

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/nsf/termbox-go"

	"github.com/skeinlabs/skein/client/editor"
	"github.com/skeinlabs/skein/commons"
)

// UI creates a new editor view and runs the main loop.
func UI(conn *websocket.Conn) error {
	err := termbox.Init()
	if err != nil {
		return err
	}
	defer termbox.Close()

	e = editor.NewEditor()
	e.SetSize(termbox.Size())
	e.SetText(session.Text())
	e.Draw()

	return mainLoop(conn)
}

// mainLoop is the main update loop for the UI. Besides key events and
// inbound messages it periodically reports the session's vector clock to
// the server, which feeds the causal-stability watermark.
func mainLoop(conn *websocket.Conn) error {
	termboxChan := getTermboxChan()
	msgChan := getMsgChan(conn)

	versionTicker := time.NewTicker(5 * time.Second)
	defer versionTicker.Stop()

	for {
		select {
		case termboxEvent := <-termboxChan:
			err := handleTermboxEvent(termboxEvent, conn)
			if err != nil {
				return err
			}
		case msg := <-msgChan:
			handleMsg(msg, conn)
		case <-versionTicker.C:
			report := commons.Message{Type: commons.VersionMessage, Version: session.Version()}
			if err := conn.WriteJSON(&report); err != nil {
				logger.Errorf("failed to report version: %v", err)
			}
		}
	}
}
