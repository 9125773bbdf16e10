package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/nsf/termbox-go"
	"github.com/sirupsen/logrus"

	"github.com/skeinlabs/skein/commons"
	"github.com/skeinlabs/skein/crdt"
)

// handleTermboxEvent handles key input by updating the local CRDT session and sending a message over the WebSocket connection.
func handleTermboxEvent(ev termbox.Event, conn *websocket.Conn) error {

	// We only want to deal with termbox key events (EventKey).
	if ev.Type == termbox.EventKey {
		switch ev.Key {

		// The default keys for exiting a session are Esc and Ctrl+C.
		case termbox.KeyEsc, termbox.KeyCtrlC:
			// Return an error with the prefix "skein", so that it gets treated as an exit "event".
			return errors.New("skein: exiting")

		// The default key for saving the document's operation log is Ctrl+S.
		case termbox.KeyCtrlS:
			// If no file name is specified, set filename to "skein-content.json"
			if fileName == "" {
				fileName = "skein-content.json"
			}

			// Save the operation log to a file.
			err := crdt.Save(fileName, session)
			if err != nil {
				e.StatusMsg = "Failed to save to " + fileName
				logrus.Errorf("failed to save to %s", fileName)
				e.SetStatusBar()
				return err
			}

			e.StatusMsg = "Saved document to " + fileName
			e.SetStatusBar()

		// The default key for loading content from a file is Ctrl+L.
		case termbox.KeyCtrlL:
			if fileName != "" {
				logger.Log(logrus.InfoLevel, "LOADING DOCUMENT")
				ops, err := crdt.Load(fileName)
				e.StatusMsg = "Loading " + fileName
				e.SetStatusBar()
				if err != nil {
					e.StatusMsg = "Failed to load " + fileName
					logrus.Errorf("failed to load file %s", fileName)
					e.SetStatusBar()
					return err
				}
				session = crdt.Replay(session.Site(), ops)
				e.SetX(0)
				e.SetText(session.Text())

				logger.Log(logrus.InfoLevel, "SENDING DOCUMENT")
				docMsg := commons.Message{Type: commons.DocSyncMessage, Operations: session.Log()}
				_ = conn.WriteJSON(&docMsg)
			} else {
				e.StatusMsg = "No file to load!"
				e.SetStatusBar()
			}

		// The default keys for moving left inside the text area are the left arrow key, and Ctrl+B (move backward).
		case termbox.KeyArrowLeft, termbox.KeyCtrlB:
			e.MoveCursor(-1, 0)

		// The default keys for moving right inside the text area are the right arrow key, and Ctrl+F (move forward).
		case termbox.KeyArrowRight, termbox.KeyCtrlF:
			e.MoveCursor(1, 0)

		// The default keys for moving up inside the text area are the up arrow key, and Ctrl+P (move to previous line).
		case termbox.KeyArrowUp, termbox.KeyCtrlP:
			e.MoveCursor(0, -1)

		// The default keys for moving down inside the text area are the down arrow key, and Ctrl+N (move to next line).
		case termbox.KeyArrowDown, termbox.KeyCtrlN:
			e.MoveCursor(0, 1)

		// Home key, moves cursor to initial position (X=0).
		case termbox.KeyHome:
			e.SetX(0)

		// End key, moves cursor to final position (X= length of text).
		case termbox.KeyEnd:
			e.SetX(len(e.Text))

		// The default keys for deleting a character are Backspace and Delete.
		case termbox.KeyBackspace, termbox.KeyBackspace2:
			performOperation(OperationDelete, ev, conn)
		case termbox.KeyDelete:
			performOperation(OperationDelete, ev, conn)

		// The Tab key inserts 4 spaces to simulate a "tab".
		case termbox.KeyTab:
			for i := 0; i < 4; i++ {
				ev.Ch = ' '
				performOperation(OperationInsert, ev, conn)
			}

		// The Enter key inserts a newline character to the editor's content.
		case termbox.KeyEnter:
			ev.Ch = '\n'
			performOperation(OperationInsert, ev, conn)

		// The Space key inserts a space character to the editor's content.
		case termbox.KeySpace:
			ev.Ch = ' '
			performOperation(OperationInsert, ev, conn)

		// Every other key is eligible to be a candidate for insertion.
		default:
			if ev.Ch != 0 {
				performOperation(OperationInsert, ev, conn)
			}
		}
	}

	e.Draw()
	return nil
}

const (
	OperationInsert = iota
	OperationDelete
)

// performOperation generates a CRDT insert or delete through the local session and sends the resulting operation over the WebSocket connection.
func performOperation(opType int, ev termbox.Event, conn *websocket.Conn) {
	ch := string(ev.Ch)

	var msg commons.Message

	// Modify local state (CRDT) first.
	switch opType {
	case OperationInsert:
		logger.Infof("LOCAL INSERT: %s at cursor position %v\n", ch, e.Cursor)

		op := session.InsertAt(e.Cursor, ch)
		e.SetText(session.Text())
		e.SetX(e.Cursor + 1)

		msg = commons.Message{Type: commons.OperationMessage, Operation: op}

	case OperationDelete:
		logger.Infof("LOCAL DELETE: cursor position %v\n", e.Cursor)

		if e.Cursor == 0 {
			return
		}

		op, ok := session.DeleteAt(e.Cursor - 1)
		if !ok {
			return
		}
		e.SetText(session.Text())
		e.SetX(e.Cursor - 1)

		msg = commons.Message{Type: commons.OperationMessage, Operation: op}
	}

	// Send the message.
	if err := conn.WriteJSON(msg); err != nil {
		e.StatusMsg = "lost connection!"
		e.SetStatusBar()
	}
}

// getTermboxChan returns a channel of termbox Events repeatedly waiting on user input.
func getTermboxChan() chan termbox.Event {
	termboxChan := make(chan termbox.Event)

	go func() {
		for {
			termboxChan <- termbox.PollEvent()
		}
	}()

	return termboxChan
}

// handleMsg updates the CRDT session with the contents of the message.
func handleMsg(msg commons.Message, conn *websocket.Conn) {
	switch msg.Type {
	case commons.DocSyncMessage:
		logger.Infof("DOCSYNC RECEIVED, merging %d operations\n", len(msg.Operations))

		for _, op := range msg.Operations {
			if err := op.Validate(); err != nil {
				logger.Errorf("dropping malformed operation in sync: %v", err)
				continue
			}
			session.Apply(op)
		}

	case commons.DocReqMessage:
		logger.Infof("DOCREQ RECEIVED, sending operation log to %v\n", msg.ID)

		docMsg := commons.Message{Type: commons.DocSyncMessage, Operations: session.Log(), ID: msg.ID}
		_ = conn.WriteJSON(&docMsg)

	case commons.SiteIDMessage:
		siteID, err := strconv.Atoi(msg.Text)
		if err != nil {
			logger.Errorf("failed to set siteID, err: %v\n", err)
			break
		}

		session.SetSite(crdt.SiteID(siteID))
		logger.Infof("SITE ID %v ASSIGNED", siteID)

	case commons.JoinMessage:
		e.StatusMsg = fmt.Sprintf("%s has joined the session!", msg.Username)
		e.SetStatusBar()

	case commons.UsersMessage:
		e.StatusMsg = fmt.Sprintf("users: %s", msg.Text)
		e.SetStatusBar()

	case commons.StableMessage:
		// The watermark covers operations every active peer has observed;
		// tombstones at or below it are reclaimed.
		collected := session.Collect(msg.Version)
		if collected > 0 {
			logger.Infof("collected %d stable tombstones (watermark %v)", collected, msg.Version)
		}

	case commons.OperationMessage:
		op := msg.Operation
		if err := op.Validate(); err != nil {
			logger.Errorf("dropping malformed operation: %v", err)
			return
		}

		session.Apply(op)
		logger.Infof("REMOTE %s: %v from site %v\n", op.Kind, op.ID, op.Site)
	}

	logDocState()

	e.SetText(session.Text())
	e.Draw()
}

// getMsgChan returns a message channel that repeatedly reads from a websocket connection.
func getMsgChan(conn *websocket.Conn) chan commons.Message {
	messageChan := make(chan commons.Message)
	go func() {
		for {
			var msg commons.Message

			// Read message.
			err := conn.ReadJSON(&msg)
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Errorf("websocket error: %v", err)
				}
				break
			}

			logger.Infof("message received: %+v\n", msg)

			// send message through channel
			messageChan <- msg

		}
	}()
	return messageChan
}
