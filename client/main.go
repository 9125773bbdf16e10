package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/skeinlabs/skein/client/editor"
	"github.com/skeinlabs/skein/commons"
	"github.com/skeinlabs/skein/crdt"
	"github.com/skeinlabs/skein/tui"
)

// Client state shared between the engine and the UI loop. The session is
// internally locked; the editor is only touched from the UI goroutine.
var (
	session  *crdt.Session
	e        *editor.Editor
	logger   *logrus.Logger
	flags    Flags
	fileName string
)

func main() {
	flags = parseFlags()
	fileName = flags.File

	name, err := readUsername()
	if err != nil {
		color.Red("Login failed: %s", err)
		os.Exit(0)
	}

	logger = logrus.New()
	logFile, debugLogFile, err := setupLogger(logger)
	if err != nil {
		fmt.Printf("Failed to setup logger, exiting: %s", err)
		os.Exit(1)
	}
	defer closeLogFiles(logFile, debugLogFile)

	if flags.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	// The real site ID arrives from the server during the handshake;
	// until then the session must not generate operations.
	session = crdt.NewSession(0)

	// Seed the document from a saved operation log, if one was given.
	if fileName != "" {
		if ops, err := crdt.Load(fileName); err == nil {
			session = crdt.Replay(0, ops)
		} else {
			color.Yellow("Could not load %s: %s", fileName, err)
		}
	}

	// Display welcome message.
	color.Green("Welcome %s!\n", name)
	color.Green("Connecting to server @ %s\n", flags.Server)

	conn, _, err := createConn(flags)
	if err != nil {
		color.Red("Connection error, exiting: %s", err)
		os.Exit(0)
	}
	defer conn.Close()

	// Send joining message.
	joinMsg := commons.Message{Username: name, Text: "has joined the session.", Type: commons.JoinMessage}
	if err := conn.WriteJSON(joinMsg); err != nil {
		color.Red("Failed to join, exiting: %s", err)
		os.Exit(0)
	}

	if err := UI(conn); err != nil {
		if strings.HasPrefix(err.Error(), "skein") {
			fmt.Println("Exiting session.")
			return
		}
		fmt.Printf("Exiting due to error: %s\n", err)
		os.Exit(1)
	}
}

// readUsername prompts for a name, through the TUI login screen when the
// login flag is set, otherwise on stdin.
func readUsername() (string, error) {
	if flags.Login {
		return tui.Login()
	}

	fmt.Print(color.YellowString("Enter your name: "))
	s := bufio.NewScanner(os.Stdin)
	s.Scan()
	if err := s.Err(); err != nil {
		return "", err
	}

	name := strings.TrimSpace(s.Text())
	if name == "" {
		name = "anonymous"
	}
	return name, nil
}
