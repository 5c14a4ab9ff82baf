// udpsend sends test datagrams to a running udpmon instance and verifies the
// ECHO reply. Each datagram gets a unique tag so replies can be correlated.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8888", "udpmon UDP address")
	message := flag.String("message", "hello", "Payload to send")
	count := flag.Int("count", 1, "Number of datagrams to send")
	tag := flag.Bool("tag", true, "Append a unique tag to each payload")
	timeout := flag.Duration("timeout", 2*time.Second, "Echo reply timeout")
	flag.Parse()

	conn, err := net.Dial("udp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	buf := make([]byte, 64*1024)
	for i := 0; i < *count; i++ {
		payload := *message
		if *tag {
			payload = fmt.Sprintf("%s %s", *message, uuid.New().String())
		}

		if _, err := conn.Write([]byte(payload)); err != nil {
			fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
			os.Exit(1)
		}

		conn.SetReadDeadline(time.Now().Add(*timeout))
		n, err := conn.Read(buf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "No echo reply: %v\n", err)
			os.Exit(1)
		}

		reply := string(buf[:n])
		if !strings.HasPrefix(reply, "ECHO:") || reply[len("ECHO:"):] != payload {
			fmt.Fprintf(os.Stderr, "Unexpected reply: %q\n", reply)
			os.Exit(1)
		}

		fmt.Printf("sent %q, echo ok\n", payload)
	}
}
