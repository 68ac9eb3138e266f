package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"roomchat/internal/gateway"
	"roomchat/internal/server"
)

func main() {
	addr := flag.String("addr", ":8080", "TCP address to listen on")
	wsAddr := flag.String("ws", "", "optional WebSocket gateway address (e.g. :8081); empty disables")
	maxLine := flag.Int("max-line", 4096, "maximum accepted input line length in bytes")
	history := flag.Int("history", 100, "messages of history retained per room")
	recorders := flag.Int("recorders", 2, "number of history-recorder goroutines")
	flag.Parse()

	srv := server.New(server.Config{
		MaxLineBytes:   *maxLine,
		HistoryPerRoom: *history,
		Recorders:      *recorders,
	})

	var gw *gateway.Gateway
	if *wsAddr != "" {
		gw = gateway.New(srv, int64(*maxLine))
		go func() {
			if err := gw.ListenAndServe(*wsAddr); err != nil {
				log.Fatalf("gateway: %v", err)
			}
		}()
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("[server] shutting down…")
		if gw != nil {
			gw.Close()
		}
		srv.Shutdown()
	}()

	// A bind or accept failure is fatal; a nil return means Shutdown
	// closed the listener.
	if err := srv.ListenAndServe(*addr); err != nil {
		log.Fatalf("[server] %v", err)
	}
	log.Println("[server] stopped")
}
