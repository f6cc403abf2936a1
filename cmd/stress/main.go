// Command stress connects waves of websocket clients to a document and
// reports how many the server sustains. Each client performs the full
// join handshake: connect, read the snapshot, stay attached.
package main

import (
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

func main() {
	serverURL := flag.String("url", "ws://localhost:8081", "server base URL")
	docID := flag.String("doc", "test-doc", "document id to join")
	maxClients := flag.Int("max", 5000, "total clients to attempt")
	step := flag.Int("step", 100, "clients per batch")
	flag.Parse()

	var (
		mu    sync.Mutex
		conns []*websocket.Conn
	)
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	connected := 0
	for batch := 0; batch < *maxClients; batch += *step {
		var wg sync.WaitGroup
		results := make([]bool, *step)
		for i := 0; i < *step; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				conn, err := connect(*serverURL, *docID, batch+i)
				if err != nil {
					log.Printf("client %d failed: %v", batch+i, err)
					return
				}
				mu.Lock()
				conns = append(conns, conn)
				mu.Unlock()
				results[i] = true
			}(i)
		}
		wg.Wait()

		success := 0
		for _, ok := range results {
			if ok {
				success++
			}
		}
		connected += success
		log.Printf("connected %d clients so far", connected)

		if success < *step {
			log.Printf("server refused connections after %d clients", connected)
			break
		}
	}
}

// connect dials one client and waits for its snapshot, retrying
// transient failures with exponential backoff.
func connect(serverURL, docID string, i int) (*websocket.Conn, error) {
	url := fmt.Sprintf("%s/ws/%s?client_id=client-%d", serverURL, docID, i)

	var conn *websocket.Conn
	op := func() error {
		var err error
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		return err
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	return conn, nil
}
