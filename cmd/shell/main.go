// The shell binary is a thin interactive client for the comp-gate
// daemon: it locates the core through the connection file and turns
// typed commands into IO API requests.
//
// Commands: list, logs, enable <id>, disable <id>, quit.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/xfajk/comp-gate/internal/device"
	"github.com/xfajk/comp-gate/internal/ioapi"
)

func main() {
	connFile := flag.String("connection-file", ioapi.ConnectionFilePath(), "path to the daemon connection file")
	flag.Parse()

	addr, err := ioapi.ResolveCoreAddr(*connFile)
	if err != nil {
		fatal("locating comp-gate core: %v", err)
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		fatal("connecting to comp-gate core at %s: %v", addr, err)
	}
	defer conn.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}

		cmd, err := parseShellCommand(line)
		if err != nil {
			fmt.Println(err)
			continue
		}

		if err := ioapi.WriteFrame(conn, cmd.Encode()); err != nil {
			fatal("sending request: %v", err)
		}
		body, err := ioapi.ReadFrame(conn)
		if err != nil {
			fatal("reading response: %v", err)
		}
		fmt.Println(string(body))
	}
}

// parseShellCommand maps a typed line onto a protocol command. The
// whole remainder after the verb is the device id.
func parseShellCommand(line string) (ioapi.Command, error) {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "list":
		return ioapi.Command{Op: ioapi.OpGetDeviceList}, nil
	case "logs":
		return ioapi.Command{Op: ioapi.OpGetConnectionLogs}, nil
	case "enable", "disable":
		if rest == "" {
			return ioapi.Command{}, fmt.Errorf("usage: %s <device id>", verb)
		}
		op := ioapi.OpEnableDevice
		if verb == "disable" {
			op = ioapi.OpDisableDevice
		}
		return ioapi.Command{Op: op, DeviceID: device.NewID(rest)}, nil
	default:
		return ioapi.Command{}, fmt.Errorf("unknown command %q (list, logs, enable <id>, disable <id>, quit)", verb)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
